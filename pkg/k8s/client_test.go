package k8s

import (
	"github.com/sirupsen/logrus"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/team-Plog/plog-sub000/internal/config"
)

var _ = Describe("Client", func() {
	var logger *logrus.Logger

	BeforeEach(func() {
		logger = logrus.New()
		logger.SetLevel(logrus.FatalLevel)
	})

	Describe("NewClient", func() {
		Context("when creating client with a named context outside a cluster", func() {
			It("should fail to build a rest config", func() {
				cfg := config.KubernetesConfig{
					Context: "test-context",
				}

				_, err := NewClient(cfg, logger)

				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to create Kubernetes config"))
			})
		})
	})

	Describe("NewUnifiedClient", func() {
		It("should default the namespace when none is configured", func() {
			c := NewUnifiedClient(fake.NewSimpleClientset(), config.KubernetesConfig{}, logger)
			Expect(c).NotTo(BeNil())
			Expect(c.IsHealthy()).To(BeAssignableToTypeOf(true))
		})

		It("should implement the Client interface", func() {
			var client Client = NewUnifiedClient(fake.NewSimpleClientset(), config.KubernetesConfig{Namespace: "default"}, logger)
			Expect(client).NotTo(BeNil())
		})
	})
})
