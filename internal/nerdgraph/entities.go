package nerdgraph

import (
	"context"
	"fmt"
)

// Entity types that need a non-default deletion mutation.
const (
	TypeDashboard          = "DASHBOARD_ENTITY"
	TypeAPMApplication     = "APM_APPLICATION_ENTITY"
	TypeInfrastructureHost = "INFRASTRUCTURE_HOST_ENTITY"
	TypeThirdPartyService  = "THIRD_PARTY_SERVICE_ENTITY"
)

// Entity is a search result. Only GUID is needed for deletion; the rest is
// for reporting.
type Entity struct {
	GUID      string `json:"guid"`
	Name      string `json:"name"`
	Type      string `json:"entityType"`
	Domain    string `json:"domain"`
	AccountID int    `json:"accountId"`
}

const entitySearchQuery = `
query FindMatchingEntities($entityQuery: String!) {
  actor {
    entitySearch(query: $entityQuery) {
      count
      results {
        nextCursor
        entities {
          guid
          name
          entityType
          domain
          accountId
        }
      }
    }
  }
}`

type entitySearchData struct {
	Actor struct {
		EntitySearch *struct {
			Count   int `json:"count"`
			Results struct {
				NextCursor *string  `json:"nextCursor"`
				Entities   []Entity `json:"entities"`
			} `json:"results"`
		} `json:"entitySearch"`
	} `json:"actor"`
}

// SearchResult is one page of entity search output.
type SearchResult struct {
	Entities []Entity
	// Total is the server-side match count, which can exceed len(Entities).
	Total int
	// Truncated is set when NerdGraph reported further pages.
	Truncated bool
}

// ScopeQuery restricts a user filter to a single account.
func ScopeQuery(accountID int, query string) string {
	return fmt.Sprintf("accountId = %d AND (%s)", accountID, query)
}

// SearchEntities sends a single entitySearch request scoped to accountID.
// Entities are returned in server order.
func (c *Client) SearchEntities(ctx context.Context, accountID int, query string) (*SearchResult, error) {
	var data entitySearchData
	vars := map[string]any{"entityQuery": ScopeQuery(accountID, query)}
	if err := c.Do(ctx, entitySearchQuery, vars, &data); err != nil {
		return nil, err
	}
	search := data.Actor.EntitySearch
	if search == nil {
		return nil, fmt.Errorf("%w: entitySearch missing from response", ErrMalformedResponse)
	}

	result := &SearchResult{
		Entities:  search.Results.Entities,
		Total:     search.Count,
		Truncated: search.Results.NextCursor != nil && *search.Results.NextCursor != "",
	}
	if result.Entities == nil {
		result.Entities = []Entity{}
	}
	return result, nil
}
