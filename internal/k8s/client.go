package k8s

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"chatlens/internal/models"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
)

// Maintenance job kinds
const (
	JobBatchAnalysis    = "batch-analysis"
	JobUpdateEmbeddings = "update-embeddings"
)

const secretName = "chatlens-secrets"

// ErrUnknownJobKind is returned for a kind that has no job template
var ErrUnknownJobKind = errors.New("unknown job kind")

// Client wraps the Kubernetes client
type Client struct {
	clientset kubernetes.Interface
	namespace string
	image     string
	now       func() time.Time
}

// NewClient creates a new Kubernetes client
// If namespace is empty, defaults to "chatlens"
func NewClient(namespace, image string) (*Client, error) {
	config, err := getKubeConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get kubeconfig: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	return newClient(clientset, namespace, image), nil
}

func newClient(clientset kubernetes.Interface, namespace, image string) *Client {
	if namespace == "" {
		namespace = "chatlens"
	}
	return &Client{
		clientset: clientset,
		namespace: namespace,
		image:     image,
		now:       time.Now,
	}
}

// getKubeConfig gets the Kubernetes configuration
func getKubeConfig() (*rest.Config, error) {
	// Try in-cluster config first (when running inside Kubernetes)
	config, err := rest.InClusterConfig()
	if err == nil {
		return config, nil
	}

	var kubeconfig string
	if home := homedir.HomeDir(); home != "" {
		kubeconfig = filepath.Join(home, ".kube", "config")
	}
	if envKubeconfig := os.Getenv("KUBECONFIG"); envKubeconfig != "" {
		kubeconfig = envKubeconfig
	}

	config, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build config: %w", err)
	}

	return config, nil
}

// ValidKind reports whether kind has a job template
func ValidKind(kind string) bool {
	return kind == JobBatchAnalysis || kind == JobUpdateEmbeddings
}

// CreateMaintenanceJob launches a one-shot job running the binary named after kind
// and returns the job name
func (c *Client) CreateMaintenanceJob(ctx context.Context, kind string) (string, error) {
	if !ValidKind(kind) {
		return "", fmt.Errorf("%w: %q", ErrUnknownJobKind, kind)
	}

	jobName := fmt.Sprintf("%s-%d", kind, c.now().Unix())
	labels := map[string]string{
		"app":          "chatlens",
		"job-type":     kind,
		"triggered-by": "api",
	}

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      jobName,
			Namespace: c.namespace,
			Labels:    labels,
		},
		Spec: batchv1.JobSpec{
			BackoffLimit:            int32Ptr(1),
			TTLSecondsAfterFinished: int32Ptr(86400),
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec:       c.buildPodSpec(kind),
			},
		},
	}

	if _, err := c.clientset.BatchV1().Jobs(c.namespace).Create(ctx, job, metav1.CreateOptions{}); err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}
	return jobName, nil
}

func (c *Client) buildPodSpec(kind string) corev1.PodSpec {
	return corev1.PodSpec{
		RestartPolicy: corev1.RestartPolicyNever,
		Containers: []corev1.Container{
			{
				Name:    kind,
				Image:   c.image,
				Command: []string{"/app/bin/" + kind},
				EnvFrom: []corev1.EnvFromSource{
					{
						ConfigMapRef: &corev1.ConfigMapEnvSource{
							LocalObjectReference: corev1.LocalObjectReference{Name: "chatlens-config"},
							Optional:             boolPtr(true),
						},
					},
				},
				Env: []corev1.EnvVar{
					secretEnv("DATABASE_URL", "database-url"),
					secretEnv("OPENAI_API_KEY", "openai-api-key"),
					secretEnv("AZURE_OPENAI_KEY", "azure-openai-key"),
				},
				Resources: corev1.ResourceRequirements{
					Requests: corev1.ResourceList{
						corev1.ResourceMemory: resourceQuantity("256Mi"),
						corev1.ResourceCPU:    resourceQuantity("100m"),
					},
					Limits: corev1.ResourceList{
						corev1.ResourceMemory: resourceQuantity("512Mi"),
						corev1.ResourceCPU:    resourceQuantity("500m"),
					},
				},
			},
		},
	}
}

// GetJobStatus reports the observed state of a job
func (c *Client) GetJobStatus(ctx context.Context, jobName string) (*models.JobStatus, error) {
	job, err := c.clientset.BatchV1().Jobs(c.namespace).Get(ctx, jobName, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return jobStatus(job), nil
}

func jobStatus(job *batchv1.Job) *models.JobStatus {
	s := job.Status
	status := &models.JobStatus{
		Active:    s.Active,
		Succeeded: s.Succeeded,
		Failed:    s.Failed,
	}
	if s.StartTime != nil {
		t := s.StartTime.Time
		status.StartTime = &t
	}
	if s.CompletionTime != nil {
		t := s.CompletionTime.Time
		status.CompletionTime = &t
	}

	switch {
	case s.Succeeded > 0:
		status.Status = "succeeded"
	case s.Active > 0:
		status.Status = "running"
	case s.Failed > 0:
		status.Status = "failed"
	default:
		status.Status = "pending"
	}
	return status
}

// Helper functions

func secretEnv(name, key string) corev1.EnvVar {
	return corev1.EnvVar{
		Name: name,
		ValueFrom: &corev1.EnvVarSource{
			SecretKeyRef: &corev1.SecretKeySelector{
				LocalObjectReference: corev1.LocalObjectReference{Name: secretName},
				Key:                  key,
				Optional:             boolPtr(true),
			},
		},
	}
}

func int32Ptr(i int32) *int32 {
	return &i
}

func boolPtr(b bool) *bool {
	return &b
}

func resourceQuantity(value string) resource.Quantity {
	qty, err := resource.ParseQuantity(value)
	if err != nil {
		// Return zero quantity on error
		return resource.Quantity{}
	}
	return qty
}
