package lease

import (
	"context"
	"os"
	"time"

	coordinationv1 "k8s.io/api/coordination/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// KubernetesLease implements leader election on a coordination/v1 Lease resource
type KubernetesLease struct {
	client    kubernetes.Interface
	namespace string
	name      string
	holder    string
}

// NewKubernetesLease creates the lease handle with a fresh holder identity.
// The lease object itself is created lazily on the first acquisition.
func NewKubernetesLease(client kubernetes.Interface, namespace, name string) *KubernetesLease {
	return &KubernetesLease{
		client:    client,
		namespace: namespace,
		name:      name,
		holder:    holderIdentity(name),
	}
}

// NewKubernetesClient builds a clientset from the in-cluster service account,
// falling back to KUBECONFIG for out-of-cluster runs.
func NewKubernetesClient() (kubernetes.Interface, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		config, err = clientcmd.BuildConfigFromFlags("", os.Getenv("KUBECONFIG"))
		if err != nil {
			return nil, err
		}
	}
	return kubernetes.NewForConfig(config)
}

// Holder returns this process identity as written into the lease
func (l *KubernetesLease) Holder() string {
	return l.holder
}

// TryAcquireOrRenew acquires the lease if free or expired, renews it if we
// already hold it. Returns false without error when another live holder owns it.
// Write conflicts from concurrent acquirers count as not acquired.
func (l *KubernetesLease) TryAcquireOrRenew(ctx context.Context) (bool, error) {
	now := metav1.NewMicroTime(time.Now())
	ttl := int32(TTLSeconds)

	current, err := l.client.CoordinationV1().Leases(l.namespace).Get(ctx, l.name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		lease := &coordinationv1.Lease{
			ObjectMeta: metav1.ObjectMeta{Name: l.name, Namespace: l.namespace},
			Spec: coordinationv1.LeaseSpec{
				HolderIdentity:       &l.holder,
				LeaseDurationSeconds: &ttl,
				AcquireTime:          &now,
				RenewTime:            &now,
			},
		}
		_, err = l.client.CoordinationV1().Leases(l.namespace).Create(ctx, lease, metav1.CreateOptions{})
		if apierrors.IsAlreadyExists(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	heldByUs := current.Spec.HolderIdentity != nil && *current.Spec.HolderIdentity == l.holder
	if !heldByUs && !leaseExpired(current, now.Time) {
		return false, nil
	}

	if !heldByUs {
		transitions := int32(0)
		if current.Spec.LeaseTransitions != nil {
			transitions = *current.Spec.LeaseTransitions
		}
		transitions++
		current.Spec.HolderIdentity = &l.holder
		current.Spec.AcquireTime = &now
		current.Spec.LeaseTransitions = &transitions
	}
	current.Spec.LeaseDurationSeconds = &ttl
	current.Spec.RenewTime = &now

	_, err = l.client.CoordinationV1().Leases(l.namespace).Update(ctx, current, metav1.UpdateOptions{})
	if apierrors.IsConflict(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// StepDown clears the holder so another replica can take over immediately
func (l *KubernetesLease) StepDown(ctx context.Context) error {
	current, err := l.client.CoordinationV1().Leases(l.namespace).Get(ctx, l.name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if current.Spec.HolderIdentity == nil || *current.Spec.HolderIdentity != l.holder {
		return nil
	}
	empty := ""
	current.Spec.HolderIdentity = &empty
	current.Spec.RenewTime = nil
	_, err = l.client.CoordinationV1().Leases(l.namespace).Update(ctx, current, metav1.UpdateOptions{})
	return err
}

func leaseExpired(lease *coordinationv1.Lease, now time.Time) bool {
	if lease.Spec.HolderIdentity == nil || *lease.Spec.HolderIdentity == "" {
		return true
	}
	if lease.Spec.RenewTime == nil || lease.Spec.LeaseDurationSeconds == nil {
		return true
	}
	expiry := lease.Spec.RenewTime.Add(time.Duration(*lease.Spec.LeaseDurationSeconds) * time.Second)
	return expiry.Before(now)
}
