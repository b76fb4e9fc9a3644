package registry

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dronenet/internal/domain"
)

type stubNode struct {
	id      domain.NodeID
	variant string
}

func (s *stubNode) ID() domain.NodeID { return s.id }
func (s *stubNode) Run()              {}

func stubFactory(variant string) Factory {
	return func(spec Spec) (Runnable, error) {
		return &stubNode{id: spec.Node.ID, variant: variant}, nil
	}
}

func emptySpec(n domain.ParsedNode) (Spec, error) {
	return Spec{Node: n}, nil
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	logger, _ := test.NewNullLogger()
	r := New(logrus.NewEntry(logger))
	for _, reg := range []Registration{
		{Kind: domain.NodeKindDrone, Variant: "a", Factory: stubFactory("a")},
		{Kind: domain.NodeKindDrone, Variant: "b", Factory: stubFactory("b")},
		{Kind: domain.NodeKindDrone, Variant: "c", Factory: stubFactory("c")},
		{Kind: domain.NodeKindClient, Variant: "a", Factory: stubFactory("a")},
	} {
		require.NoError(t, r.Register(reg))
	}
	return r
}

func drones(n int) []domain.ParsedNode {
	out := make([]domain.ParsedNode, n)
	for i := range out {
		out[i] = domain.NewDrone(domain.NodeID(i+1), 0)
	}
	return out
}

func variantsOf(built []Built) []string {
	out := make([]string, len(built))
	for i, b := range built {
		out[i] = b.Variant
	}
	return out
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := newTestRegistry(t)

	err := r.Register(Registration{Kind: domain.NodeKindDrone, Variant: "a", Factory: stubFactory("a")})
	assert.ErrorIs(t, err, ErrDuplicateRegistration)

	// same variant name under another kind is fine
	err = r.Register(Registration{Kind: domain.NodeKindServer, Variant: "a", Factory: stubFactory("a")})
	assert.NoError(t, err)
}

func TestRegisterRejectsIncomplete(t *testing.T) {
	r := New(nil)

	assert.ErrorIs(t, r.Register(Registration{Kind: domain.NodeKindDrone, Factory: stubFactory("x")}), ErrInvalidRegistration)
	assert.ErrorIs(t, r.Register(Registration{Kind: domain.NodeKindDrone, Variant: "x"}), ErrInvalidRegistration)
	assert.ErrorIs(t, r.Register(Registration{Kind: "relay", Variant: "x", Factory: stubFactory("x")}), ErrInvalidRegistration)
}

func TestVariantsAndList(t *testing.T) {
	r := newTestRegistry(t)

	assert.Equal(t, []string{"a", "b", "c"}, r.Variants(domain.NodeKindDrone))
	assert.Equal(t, []string{"a"}, r.Variants(domain.NodeKindClient))
	assert.Empty(t, r.Variants(domain.NodeKindServer))
	assert.Len(t, r.List(), 4)
}

func TestSelectPreservesRegistrationOrder(t *testing.T) {
	r := newTestRegistry(t)

	sel := r.Select(domain.NodeKindDrone, []string{"c", "a"})
	require.Len(t, sel, 2)
	assert.Equal(t, "a", sel[0].Variant)
	assert.Equal(t, "c", sel[1].Variant)

	assert.Len(t, r.Select(domain.NodeKindDrone, nil), 3)
	assert.Empty(t, r.Select(domain.NodeKindDrone, []string{"missing"}))
}

func TestBuildRoundRobin(t *testing.T) {
	r := newTestRegistry(t)

	tests := []struct {
		name   string
		nodes  int
		filter []string
		want   []string
	}{
		{"all variants", 5, nil, []string{"a", "b", "c", "a", "b"}},
		{"filtered", 5, []string{"a", "c"}, []string{"a", "c", "a", "c", "a"}},
		{"single", 3, []string{"b"}, []string{"b", "b", "b"}},
		{"fewer nodes than variants", 2, nil, []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			built, err := r.Build(drones(tt.nodes), domain.NodeKindDrone, tt.filter, emptySpec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, variantsOf(built))

			for i, b := range built {
				assert.Equal(t, domain.NodeID(i+1), b.Runnable.ID())
				assert.Equal(t, tt.want[i], b.Runnable.(*stubNode).variant)
			}
		})
	}
}

func TestBuildStampsKind(t *testing.T) {
	r := newTestRegistry(t)

	nodes := []domain.ParsedNode{{ID: 1}, {ID: 2, Kind: domain.NodeKindServer}}
	var seen []domain.NodeKind
	built, err := r.Build(nodes, domain.NodeKindDrone, nil, func(n domain.ParsedNode) (Spec, error) {
		seen = append(seen, n.Kind)
		return Spec{Node: n}, nil
	})
	require.NoError(t, err)
	require.Len(t, built, 2)
	for _, b := range built {
		assert.Equal(t, domain.NodeKindDrone, b.Node.Kind)
	}
	assert.Equal(t, []domain.NodeKind{domain.NodeKindDrone, domain.NodeKindDrone}, seen)
}

func TestBuildNoFactory(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Build(drones(2), domain.NodeKindDrone, []string{"missing"}, emptySpec)
	assert.ErrorIs(t, err, ErrNoFactoryAvailable)

	var nfe *NoFactoryError
	require.ErrorAs(t, err, &nfe)
	assert.Equal(t, domain.NodeKindDrone, nfe.Kind)

	_, err = r.Build([]domain.ParsedNode{domain.NewServer(9, 1, 2)}, domain.NodeKindServer, nil, emptySpec)
	assert.ErrorIs(t, err, ErrNoFactoryAvailable)
}

func TestBuildNoNodesNeedsNoFactory(t *testing.T) {
	r := newTestRegistry(t)

	built, err := r.Build(nil, domain.NodeKindServer, nil, emptySpec)
	assert.NoError(t, err)
	assert.Empty(t, built)
}

func TestBuildIsAllOrNothing(t *testing.T) {
	r := newTestRegistry(t)
	boom := errors.New("boom")
	require.NoError(t, r.Register(Registration{
		Kind:    domain.NodeKindServer,
		Variant: "flaky",
		Factory: func(spec Spec) (Runnable, error) {
			if spec.Node.ID == 2 {
				return nil, boom
			}
			return &stubNode{id: spec.Node.ID}, nil
		},
	}))

	servers := []domain.ParsedNode{domain.NewServer(1), domain.NewServer(2), domain.NewServer(3)}
	built, err := r.Build(servers, domain.NodeKindServer, nil, emptySpec)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, built)

	_, err = r.Build(drones(2), domain.NodeKindDrone, nil, func(n domain.ParsedNode) (Spec, error) {
		return Spec{}, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestBuildAnnotatesLogger(t *testing.T) {
	r := newTestRegistry(t)

	var got *logrus.Entry
	require.NoError(t, r.Register(Registration{
		Kind:    domain.NodeKindServer,
		Variant: "probe",
		Factory: func(spec Spec) (Runnable, error) {
			got = spec.Logger
			return &stubNode{id: spec.Node.ID}, nil
		},
	}))

	_, err := r.Build([]domain.ParsedNode{domain.NewServer(4)}, domain.NodeKindServer, nil, emptySpec)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.NodeID(4), got.Data["node"])
	assert.Equal(t, "probe", got.Data["variant"])
}

func TestParseSelection(t *testing.T) {
	sel, err := ParseSelection(map[string][]string{"drone": {"flood"}, "server": nil})
	require.NoError(t, err)
	assert.Equal(t, []string{"flood"}, sel[domain.NodeKindDrone])

	_, err = ParseSelection(map[string][]string{"relay": {"x"}})
	assert.Error(t, err)
}
