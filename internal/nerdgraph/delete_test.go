package nerdgraph_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/nr-bulk-delete/internal/nerdgraph"
	"github.com/xkilldash9x/nr-bulk-delete/internal/nerdgraph/nerdgraphtest"
)

func TestMutation_SelectsByType(t *testing.T) {
	tests := []struct {
		entityType string
		wantOp     string
		wantForce  any
	}{
		{nerdgraph.TypeDashboard, "dashboardDelete(", nil},
		{nerdgraph.TypeAPMApplication, "entityDelete(", false},
		{nerdgraph.TypeInfrastructureHost, "entityDelete(", true},
		{nerdgraph.TypeThirdPartyService, "entityDelete(", true},
		{"SYNTHETIC_MONITOR_ENTITY", "entityDelete(", false},
	}
	for _, tt := range tests {
		t.Run(tt.entityType, func(t *testing.T) {
			doc, vars := nerdgraph.Mutation(nerdgraph.Entity{GUID: "g", Type: tt.entityType})
			assert.Contains(t, doc, tt.wantOp)
			if tt.entityType == nerdgraph.TypeDashboard {
				assert.Equal(t, "g", vars["guid"])
				return
			}
			assert.Equal(t, []string{"g"}, vars["guids"])
			assert.Equal(t, tt.wantForce, vars["forceDelete"])
		})
	}
}

func TestDeleteEntity(t *testing.T) {
	ctx := context.Background()

	t.Run("dashboard success", func(t *testing.T) {
		srv := nerdgraphtest.New(t)
		err := newTestClient(t, srv.Endpoint()).DeleteEntity(ctx, nerdgraph.Entity{GUID: "dash-1", Type: nerdgraph.TypeDashboard})
		require.NoError(t, err)
		assert.Equal(t, 1, srv.CountOperation(nerdgraphtest.OpDashboardDelete))
		assert.Equal(t, []string{"dash-1"}, srv.DeletedGUIDs())
	})

	t.Run("dashboard failure status", func(t *testing.T) {
		srv := nerdgraphtest.New(t)
		srv.Unconfirmed["dash-1"] = "Dashboard does not exist"
		err := newTestClient(t, srv.Endpoint()).DeleteEntity(ctx, nerdgraph.Entity{GUID: "dash-1", Type: nerdgraph.TypeDashboard})
		require.Error(t, err)
		assert.ErrorIs(t, err, nerdgraph.ErrNotConfirmed)
		assert.Contains(t, err.Error(), "Dashboard does not exist")
	})

	t.Run("host force deleted", func(t *testing.T) {
		srv := nerdgraphtest.New(t)
		err := newTestClient(t, srv.Endpoint()).DeleteEntity(ctx, nerdgraph.Entity{GUID: "host-1", Type: nerdgraph.TypeInfrastructureHost})
		require.NoError(t, err)

		reqs := srv.Requests()
		require.Len(t, reqs, 1)
		assert.Equal(t, nerdgraphtest.OpEntityDelete, reqs[0].Operation)
		assert.Equal(t, true, reqs[0].Variables["forceDelete"])
	})

	t.Run("guid missing from deletedEntities", func(t *testing.T) {
		srv := nerdgraphtest.New(t)
		srv.Unconfirmed["host-1"] = ""
		err := newTestClient(t, srv.Endpoint()).DeleteEntity(ctx, nerdgraph.Entity{GUID: "host-1", Type: nerdgraph.TypeInfrastructureHost})
		require.Error(t, err)
		assert.ErrorIs(t, err, nerdgraph.ErrNotConfirmed)
		assert.Contains(t, err.Error(), "still be reporting data")
	})

	t.Run("failure message from api", func(t *testing.T) {
		srv := nerdgraphtest.New(t)
		srv.Unconfirmed["app-1"] = "Entity is protected"
		err := newTestClient(t, srv.Endpoint()).DeleteEntity(ctx, nerdgraph.Entity{GUID: "app-1", Type: nerdgraph.TypeAPMApplication})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Entity is protected")
	})

	t.Run("graphql error", func(t *testing.T) {
		srv := nerdgraphtest.New(t)
		srv.DeleteErrors["app-1"] = "Not authorized to delete entity"
		err := newTestClient(t, srv.Endpoint()).DeleteEntity(ctx, nerdgraph.Entity{GUID: "app-1", Type: nerdgraph.TypeAPMApplication})

		var gqlErr *nerdgraph.GraphQLError
		require.True(t, errors.As(err, &gqlErr))
		assert.Equal(t, "Not authorized to delete entity", gqlErr.First())
	})
}
