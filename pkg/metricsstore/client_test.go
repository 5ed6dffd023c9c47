package metricsstore_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/team-Plog/plog-sub000/pkg/metricsstore"
)

var _ = Describe("Client", func() {
	var (
		client     *metricsstore.Client
		mockServer *httptest.Server
		logger     *logrus.Logger
		ctx        context.Context
	)

	BeforeEach(func() {
		logger = logrus.New()
		logger.SetLevel(logrus.FatalLevel)
		ctx = context.Background()
	})

	AfterEach(func() {
		if mockServer != nil {
			mockServer.Close()
		}
	})

	Describe("NewClient", func() {
		It("should construct a client from an endpoint with a trailing slash", func() {
			c := metricsstore.NewClient("http://localhost:9090/", 5*time.Second, logger)
			Expect(c).NotTo(BeNil())
		})
	})

	Describe("OverallTPS", func() {
		BeforeEach(func() {
			mockServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/api/v1/query"))
				query := r.URL.Query().Get("query")
				Expect(query).To(ContainSubstring("http_reqs"))

				resp := map[string]interface{}{
					"status": "success",
					"data": map[string]interface{}{
						"resultType": "vector",
						"result": []map[string]interface{}{
							{
								"metric": map[string]string{"job_name": "job-1"},
								"value":  []interface{}{float64(time.Now().Unix()), "12.5"},
							},
						},
					},
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(resp)
			}))
			client = metricsstore.NewClient(mockServer.URL, 5*time.Second, logger)
		})

		It("should return the summed TPS value", func() {
			tps, err := client.OverallTPS(ctx, "job-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(tps).To(Equal(12.5))
		})
	})

	Describe("OverallErrorRate", func() {
		BeforeEach(func() {
			mockServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				query := r.URL.Query().Get("query")
				value := "0"
				if strings.Contains(query, "http_req_failed") {
					value = "2"
				} else if strings.Contains(query, "http_reqs") {
					value = "10"
				}
				resp := map[string]interface{}{
					"status": "success",
					"data": map[string]interface{}{
						"resultType": "vector",
						"result": []map[string]interface{}{
							{
								"metric": map[string]string{"job_name": "job-1"},
								"value":  []interface{}{float64(time.Now().Unix()), value},
							},
						},
					},
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(resp)
			}))
			client = metricsstore.NewClient(mockServer.URL, 5*time.Second, logger)
		})

		It("should divide failed by total", func() {
			rate, err := client.OverallErrorRate(ctx, "job-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(rate).To(Equal(0.2))
		})
	})

	Describe("error handling", func() {
		Context("when the store returns an error status", func() {
			BeforeEach(func() {
				mockServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					resp := map[string]interface{}{"status": "error"}
					w.Header().Set("Content-Type", "application/json")
					_ = json.NewEncoder(w).Encode(resp)
				}))
				client = metricsstore.NewClient(mockServer.URL, 5*time.Second, logger)
			})

			It("should surface the status in the error", func() {
				_, err := client.OverallTPS(ctx, "job-1")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("status: error"))
			})
		})

		Context("when the response body is not valid JSON", func() {
			BeforeEach(func() {
				mockServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					_, _ = w.Write([]byte("not json"))
				}))
				client = metricsstore.NewClient(mockServer.URL, 5*time.Second, logger)
			})

			It("should return a decode error", func() {
				_, err := client.OverallTPS(ctx, "job-1")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("decode response"))
			})
		})
	})

	Describe("HealthCheck", func() {
		Context("when the store is healthy", func() {
			BeforeEach(func() {
				mockServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
				}))
				client = metricsstore.NewClient(mockServer.URL, 5*time.Second, logger)
			})

			It("should return no error", func() {
				Expect(client.HealthCheck(ctx)).To(Succeed())
			})
		})

		Context("when the store is unhealthy", func() {
			BeforeEach(func() {
				mockServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusServiceUnavailable)
				}))
				client = metricsstore.NewClient(mockServer.URL, 5*time.Second, logger)
			})

			It("should return an error containing the status", func() {
				err := client.HealthCheck(ctx)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("503"))
			})
		})
	})
})
