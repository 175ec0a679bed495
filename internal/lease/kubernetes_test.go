package lease

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coordinationv1 "k8s.io/api/coordination/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

const (
	testNamespace = "feeds"
	testLeaseName = "feeds-refresher"
)

func getLease(t *testing.T, client *fake.Clientset) *coordinationv1.Lease {
	t.Helper()
	lease, err := client.CoordinationV1().Leases(testNamespace).Get(context.Background(), testLeaseName, metav1.GetOptions{})
	require.NoError(t, err)
	return lease
}

func TestHolderIdentityFormat(t *testing.T) {
	l := NewKubernetesLease(fake.NewSimpleClientset(), testNamespace, testLeaseName)
	require.True(t, strings.HasPrefix(l.Holder(), testLeaseName+"-"))
	suffix := strings.TrimPrefix(l.Holder(), testLeaseName+"-")
	assert.Len(t, suffix, 8)
}

func TestAcquireCreatesLease(t *testing.T) {
	client := fake.NewSimpleClientset()
	l := NewKubernetesLease(client, testNamespace, testLeaseName)

	acquired, err := l.TryAcquireOrRenew(context.Background())
	require.NoError(t, err)
	assert.True(t, acquired)

	lease := getLease(t, client)
	require.NotNil(t, lease.Spec.HolderIdentity)
	assert.Equal(t, l.Holder(), *lease.Spec.HolderIdentity)
	require.NotNil(t, lease.Spec.LeaseDurationSeconds)
	assert.Equal(t, int32(TTLSeconds), *lease.Spec.LeaseDurationSeconds)
	require.NotNil(t, lease.Spec.RenewTime)
}

func TestRenewWhenHeldByUs(t *testing.T) {
	client := fake.NewSimpleClientset()
	l := NewKubernetesLease(client, testNamespace, testLeaseName)

	acquired, err := l.TryAcquireOrRenew(context.Background())
	require.NoError(t, err)
	require.True(t, acquired)
	firstRenew := getLease(t, client).Spec.RenewTime.Time

	acquired, err = l.TryAcquireOrRenew(context.Background())
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.False(t, getLease(t, client).Spec.RenewTime.Time.Before(firstRenew))
}

func TestDoesNotStealLiveLease(t *testing.T) {
	client := fake.NewSimpleClientset()
	first := NewKubernetesLease(client, testNamespace, testLeaseName)
	second := NewKubernetesLease(client, testNamespace, testLeaseName)

	acquired, err := first.TryAcquireOrRenew(context.Background())
	require.NoError(t, err)
	require.True(t, acquired)

	acquired, err = second.TryAcquireOrRenew(context.Background())
	require.NoError(t, err)
	assert.False(t, acquired)
}

func TestTakesOverExpiredLease(t *testing.T) {
	client := fake.NewSimpleClientset()
	first := NewKubernetesLease(client, testNamespace, testLeaseName)
	second := NewKubernetesLease(client, testNamespace, testLeaseName)

	acquired, err := first.TryAcquireOrRenew(context.Background())
	require.NoError(t, err)
	require.True(t, acquired)

	// age the renew time past the TTL
	lease := getLease(t, client)
	expired := metav1.NewMicroTime(time.Now().Add(-(TTLSeconds + 1) * time.Second))
	lease.Spec.RenewTime = &expired
	_, err = client.CoordinationV1().Leases(testNamespace).Update(context.Background(), lease, metav1.UpdateOptions{})
	require.NoError(t, err)

	acquired, err = second.TryAcquireOrRenew(context.Background())
	require.NoError(t, err)
	assert.True(t, acquired)

	lease = getLease(t, client)
	assert.Equal(t, second.Holder(), *lease.Spec.HolderIdentity)
	require.NotNil(t, lease.Spec.LeaseTransitions)
	assert.Equal(t, int32(1), *lease.Spec.LeaseTransitions)
}

func TestStepDownReleasesLease(t *testing.T) {
	client := fake.NewSimpleClientset()
	first := NewKubernetesLease(client, testNamespace, testLeaseName)
	second := NewKubernetesLease(client, testNamespace, testLeaseName)

	acquired, err := first.TryAcquireOrRenew(context.Background())
	require.NoError(t, err)
	require.True(t, acquired)

	require.NoError(t, first.StepDown(context.Background()))
	require.NotNil(t, getLease(t, client).Spec.HolderIdentity)
	assert.Empty(t, *getLease(t, client).Spec.HolderIdentity)

	// a released lease is immediately acquirable
	acquired, err = second.TryAcquireOrRenew(context.Background())
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestStepDownLeavesForeignLeaseAlone(t *testing.T) {
	client := fake.NewSimpleClientset()
	first := NewKubernetesLease(client, testNamespace, testLeaseName)
	second := NewKubernetesLease(client, testNamespace, testLeaseName)

	acquired, err := first.TryAcquireOrRenew(context.Background())
	require.NoError(t, err)
	require.True(t, acquired)

	require.NoError(t, second.StepDown(context.Background()))
	assert.Equal(t, first.Holder(), *getLease(t, client).Spec.HolderIdentity)
}

func TestStepDownWithoutLeaseIsNoop(t *testing.T) {
	l := NewKubernetesLease(fake.NewSimpleClientset(), testNamespace, testLeaseName)
	assert.NoError(t, l.StepDown(context.Background()))
}
