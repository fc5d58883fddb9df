package nerdgraph

import (
	"context"
	"fmt"
)

const dashboardDeleteMutation = `
mutation DeleteDashboard($guid: EntityGuid!) {
  dashboardDelete(guid: $guid) {
    status
    errors {
      description
      type
    }
  }
}`

const entityDeleteMutation = `
mutation DeleteEntity($guids: [EntityGuid!]!, $forceDelete: Boolean) {
  entityDelete(guids: $guids, forceDelete: $forceDelete) {
    deletedEntities
    failures {
      guid
      message
    }
  }
}`

// forceDeleteTypes are deleted even while they are still reporting data.
var forceDeleteTypes = map[string]bool{
	TypeInfrastructureHost: true,
	TypeThirdPartyService:  true,
}

type dashboardDeleteData struct {
	DashboardDelete *struct {
		Status string `json:"status"`
		Errors []struct {
			Description string `json:"description"`
			Type        string `json:"type"`
		} `json:"errors"`
	} `json:"dashboardDelete"`
}

type entityDeleteData struct {
	EntityDelete *struct {
		DeletedEntities []string `json:"deletedEntities"`
		Failures        []struct {
			GUID    string `json:"guid"`
			Message string `json:"message"`
		} `json:"failures"`
	} `json:"entityDelete"`
}

// Mutation returns the GraphQL document and variables that delete e.
func Mutation(e Entity) (string, map[string]any) {
	if e.Type == TypeDashboard {
		return dashboardDeleteMutation, map[string]any{"guid": e.GUID}
	}
	return entityDeleteMutation, map[string]any{
		"guids":       []string{e.GUID},
		"forceDelete": forceDeleteTypes[e.Type],
	}
}

// DeleteEntity sends exactly one delete mutation for e. A nil error means the
// API confirmed the deletion.
func (c *Client) DeleteEntity(ctx context.Context, e Entity) error {
	mutation, vars := Mutation(e)
	if e.Type == TypeDashboard {
		return c.deleteDashboard(ctx, e, mutation, vars)
	}
	return c.deleteGeneric(ctx, e, mutation, vars)
}

func (c *Client) deleteDashboard(ctx context.Context, e Entity, mutation string, vars map[string]any) error {
	var data dashboardDeleteData
	if err := c.Do(ctx, mutation, vars, &data); err != nil {
		return err
	}
	res := data.DashboardDelete
	if res == nil {
		return fmt.Errorf("%w: dashboardDelete missing from response", ErrMalformedResponse)
	}
	if res.Status == "SUCCESS" {
		return nil
	}
	if len(res.Errors) > 0 {
		return fmt.Errorf("%w: %s", ErrNotConfirmed, res.Errors[0].Description)
	}
	return fmt.Errorf("%w: dashboardDelete returned status %q", ErrNotConfirmed, res.Status)
}

func (c *Client) deleteGeneric(ctx context.Context, e Entity, mutation string, vars map[string]any) error {
	var data entityDeleteData
	if err := c.Do(ctx, mutation, vars, &data); err != nil {
		return err
	}
	res := data.EntityDelete
	if res == nil {
		return fmt.Errorf("%w: entityDelete missing from response", ErrMalformedResponse)
	}
	for _, guid := range res.DeletedEntities {
		if guid == e.GUID {
			return nil
		}
	}
	for _, f := range res.Failures {
		if f.GUID == e.GUID || f.GUID == "" {
			return fmt.Errorf("%w: %s", ErrNotConfirmed, f.Message)
		}
	}
	if e.Type == TypeInfrastructureHost {
		return fmt.Errorf("%w: GUID %s not returned as deleted; the host may still be reporting data and was recreated", ErrNotConfirmed, e.GUID)
	}
	return fmt.Errorf("%w: GUID %s not returned as deleted (check permissions)", ErrNotConfirmed, e.GUID)
}
