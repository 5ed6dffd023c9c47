package k8s

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/api/resource"
	corev1 "k8s.io/api/core/v1"
)

var _ = Describe("ToK8sResourceRequirements", func() {
	Context("when converting valid resources", func() {
		It("should convert both limits and requests correctly", func() {
			input := ResourceRequirements{
				CPULimit:      "1000m",
				MemoryLimit:   "2Gi",
				CPURequest:    "500m",
				MemoryRequest: "1Gi",
			}
			expected := corev1.ResourceRequirements{
				Limits: corev1.ResourceList{
					corev1.ResourceCPU:    resource.MustParse("1000m"),
					corev1.ResourceMemory: resource.MustParse("2Gi"),
				},
				Requests: corev1.ResourceList{
					corev1.ResourceCPU:    resource.MustParse("500m"),
					corev1.ResourceMemory: resource.MustParse("1Gi"),
				},
			}

			result, err := input.ToK8sResourceRequirements()
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(expected))
		})

		It("should convert only limits when requests are empty", func() {
			input := ResourceRequirements{
				CPULimit:    "2",
				MemoryLimit: "4Gi",
			}
			expected := corev1.ResourceRequirements{
				Limits: corev1.ResourceList{
					corev1.ResourceCPU:    resource.MustParse("2"),
					corev1.ResourceMemory: resource.MustParse("4Gi"),
				},
				Requests: corev1.ResourceList{},
			}

			result, err := input.ToK8sResourceRequirements()
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(expected))
		})

		It("should convert only requests when limits are empty", func() {
			input := ResourceRequirements{
				CPURequest:    "100m",
				MemoryRequest: "256Mi",
			}
			expected := corev1.ResourceRequirements{
				Limits: corev1.ResourceList{},
				Requests: corev1.ResourceList{
					corev1.ResourceCPU:    resource.MustParse("100m"),
					corev1.ResourceMemory: resource.MustParse("256Mi"),
				},
			}

			result, err := input.ToK8sResourceRequirements()
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(expected))
		})

		It("should handle empty resources", func() {
			input := ResourceRequirements{}
			expected := corev1.ResourceRequirements{
				Limits:   corev1.ResourceList{},
				Requests: corev1.ResourceList{},
			}

			result, err := input.ToK8sResourceRequirements()
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(expected))
		})

		It("should handle CPU limit only", func() {
			input := ResourceRequirements{
				CPULimit: "1",
			}
			expected := corev1.ResourceRequirements{
				Limits: corev1.ResourceList{
					corev1.ResourceCPU: resource.MustParse("1"),
				},
				Requests: corev1.ResourceList{},
			}

			result, err := input.ToK8sResourceRequirements()
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(expected))
		})
	})

	Context("when converting invalid resources", func() {
		It("should return error for invalid cpu limit", func() {
			input := ResourceRequirements{
				CPULimit: "invalid",
			}

			_, err := input.ToK8sResourceRequirements()
			Expect(err).To(HaveOccurred())
		})

		It("should return error for invalid memory request", func() {
			input := ResourceRequirements{
				MemoryRequest: "invalid-memory",
			}

			_, err := input.ToK8sResourceRequirements()
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("parseQuantity", func() {
	Context("when parsing valid quantities", func() {
		It("should parse CPU millicores", func() {
			result, err := parseQuantity("100m")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).NotTo(BeNil())
		})

		It("should parse CPU cores", func() {
			result, err := parseQuantity("2")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).NotTo(BeNil())
		})

		It("should parse memory in Mi", func() {
			result, err := parseQuantity("512Mi")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).NotTo(BeNil())
		})

		It("should parse memory in Gi", func() {
			result, err := parseQuantity("4Gi")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).NotTo(BeNil())
		})

		It("should parse memory in bytes", func() {
			result, err := parseQuantity("1073741824")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).NotTo(BeNil())
		})
	})

	Context("when parsing invalid quantities", func() {
		It("should return error for invalid format", func() {
			_, err := parseQuantity("invalid")
			Expect(err).To(HaveOccurred())
		})

		It("should return error for empty string", func() {
			_, err := parseQuantity("")
			Expect(err).To(HaveOccurred())
		})

		It("should either reject or parse a negative value", func() {
			// Note: Kubernetes actually allows negative resource quantities in some contexts
			// This test checks the behavior, but negative values might be valid
			result, err := parseQuantity("-100m")
			if err != nil {
				Expect(err).To(HaveOccurred())
			} else {
				// If no error, verify the result is parsed correctly
				Expect(result).NotTo(BeNil())
			}
		})
	})
})