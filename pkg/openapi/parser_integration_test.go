package openapi

import (
	"context"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const sampleSpec = `{
  "openapi": "3.0.0",
  "info": {"title": "Checkout API", "version": "1.0.0"},
  "servers": [{"url": "http://checkout.default.svc.cluster.local"}],
  "tags": [{"name": "orders", "description": "Order management"}],
  "paths": {
    "/orders/{id}": {
      "get": {
        "tags": ["orders"],
        "summary": "Get an order",
        "parameters": [
          {"name": "id", "in": "path", "required": true, "schema": {"type": "string"}}
        ],
        "responses": {"200": {"description": "ok"}}
      },
      "post": {
        "tags": ["orders"],
        "summary": "Create an order",
        "requestBody": {
          "required": true,
          "content": {
            "application/json": {
              "schema": {"type": "object", "properties": {"sku": {"type": "string"}}}
            }
          }
        },
        "responses": {"201": {"description": "created"}}
      }
    }
  }
}`

var _ = Describe("Parser", func() {
	var server *httptest.Server

	AfterEach(func() {
		if server != nil {
			server.Close()
		}
	})

	Describe("Parse", func() {
		Context("when the URL is a direct spec document", func() {
			BeforeEach(func() {
				server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.Header().Set("Content-Type", "application/json")
					_, _ = w.Write([]byte(sampleSpec))
				}))
			})

			It("should extract title, base_url, and endpoints", func() {
				parser := NewParser(server.Client())
				spec, endpoints, err := parser.Parse(context.Background(), server.URL+"/v3/api-docs")

				Expect(err).NotTo(HaveOccurred())
				Expect(spec.Title).To(Equal("Checkout API"))
				Expect(spec.BaseURL).To(Equal("http://checkout.default.svc.cluster.local"))
				Expect(endpoints).To(HaveLen(2))
			})

			It("should resolve the requestBody schema as a parameter", func() {
				parser := NewParser(server.Client())
				_, endpoints, err := parser.Parse(context.Background(), server.URL+"/v3/api-docs")
				Expect(err).NotTo(HaveOccurred())

				found := false
				for _, e := range endpoints {
					if e.Method == "POST" {
						found = true
						Expect(e.Parameters).To(HaveLen(1))
						Expect(e.Parameters[0].Kind).To(BeEquivalentTo("requestBody"))
					}
				}
				Expect(found).To(BeTrue())
			})
		})
	})
})
