package postgres

import (
	"context"
	"fmt"
	"strings"

	"codexvault/internal/store"
)

func (c *Client) Search(ctx context.Context, query, moduleID, entityType string) ([]store.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query must not be empty")
	}

	sql := `
SELECT m.module_id, e.entity_id, e.entity_type, e.name, e.tags,
    ts_rank(e.search_vector, websearch_to_tsquery('english', $1)) AS score,
    CASE WHEN e.search_text <> '' THEN
        ts_headline('english', e.search_text, websearch_to_tsquery('english', $1),
            'MaxFragments=2, MaxWords=40, MinWords=20, StartSel=**, StopSel=**')
    ELSE '' END AS snippet
FROM entities e
JOIN modules m ON e.module_id = m.id
WHERE e.search_vector @@ websearch_to_tsquery('english', $1)
  AND ($2 = '' OR m.module_id = $2)
  AND ($3 = '' OR e.entity_type = $3)
ORDER BY score DESC, e.entity_id ASC
LIMIT 50
`

	rows, err := c.pool.Query(ctx, sql, query, moduleID, entityType)
	if err != nil {
		return nil, fmt.Errorf("searching entities: %w", err)
	}
	defer rows.Close()

	results := []store.SearchResult{}
	for rows.Next() {
		var r store.SearchResult
		err := rows.Scan(&r.ModuleID, &r.EntityID, &r.EntityType, &r.Name, &r.Tags, &r.Score, &r.Snippet)
		if err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		if r.Tags == nil {
			r.Tags = []string{}
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}

	return results, nil
}
