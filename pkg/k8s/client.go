package k8s

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/team-Plog/plog-sub000/internal/config"
)

// NewClient builds a Client from the given Kubernetes config: in-cluster
// config when running inside a pod, otherwise the default kubeconfig loading
// rules with an optional context override.
func NewClient(cfg config.KubernetesConfig, logger *logrus.Logger) (Client, error) {
	restConfig, err := loadRestConfig(cfg.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes config: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes clientset: %w", err)
	}

	return NewUnifiedClient(clientset, cfg, logger), nil
}

func loadRestConfig(kubeContext string) (*rest.Config, error) {
	if restConfig, err := rest.InClusterConfig(); err == nil {
		return restConfig, nil
	}

	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	overrides := &clientcmd.ConfigOverrides{}
	if kubeContext != "" {
		overrides.CurrentContext = kubeContext
	}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides).ClientConfig()
}

// NewUnifiedClient wraps an existing clientset.Interface (a real one from
// NewClient, or a fake one in tests) in the Client implementation.
func NewUnifiedClient(clientset kubernetes.Interface, cfg config.KubernetesConfig, logger *logrus.Logger) Client {
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "default"
	}
	return &basicClient{
		clientset: clientset,
		namespace: namespace,
		log:       logger,
	}
}
