/*
Package export builds XLSX workbooks of installment schedules and ships
them to object storage, reporting progress over Redis and the websocket
hub so the admin console can poll or listen.

PURPOSE:
  Registrars pull a student's full payment schedule (or a whole academic
  period's worth) as a spreadsheet. Generation runs in the background; the
  caller gets an export ID immediately and watches the status.

SEE ALSO:
  export/service.go — the generation pipeline
  export/s3.go      — object storage client
  ws/hub.go         — live progress fan-out
*/
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	statusSetKey = "export_ids"
	statusTTL    = 20 * time.Minute
)

// Status is the externally visible state of one export job. It lives in
// Redis under the export ID for statusTTL after the last update.
type Status struct {
	Key      string                 `json:"key"`
	Type     string                 `json:"type"`
	Owner    string                 `json:"owner"`
	Filters  map[string]interface{} `json:"filters"`
	Progress float64                `json:"progress"`
	Stage    string                 `json:"stage"`
	FileURL  *string                `json:"file_url"`
	FileName string                 `json:"file_name,omitempty"`
	Error    *string                `json:"error,omitempty"`
	Created  time.Time              `json:"created"`
}

// StatusStore persists export job statuses in Redis, with a membership set
// so jobs can be listed without a key scan.
type StatusStore struct {
	rdb    *redis.Client
	prefix string
}

func NewStatusStore(rdb *redis.Client, prefix string) *StatusStore {
	if prefix == "" {
		prefix = "enrollment_engine_"
	}
	return &StatusStore{rdb: rdb, prefix: prefix}
}

func (s *StatusStore) key(k string) string { return s.prefix + k }

func (s *StatusStore) Save(ctx context.Context, st *Status) error {
	if s == nil || s.rdb == nil {
		return nil
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key(st.Key), string(data), statusTTL).Err(); err != nil {
		return err
	}
	return s.rdb.SAdd(ctx, s.key(statusSetKey), st.Key).Err()
}

func (s *StatusStore) Get(ctx context.Context, exportID string) (*Status, error) {
	if s == nil || s.rdb == nil {
		return nil, fmt.Errorf("export: status store not configured")
	}
	data, err := s.rdb.Get(ctx, s.key(exportID)).Result()
	if err != nil {
		return nil, fmt.Errorf("export: status %q not found", exportID)
	}
	var st Status
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, fmt.Errorf("export: parse status %q: %w", exportID, err)
	}
	return &st, nil
}

// List returns every live status owned by owner, newest first. Jobs whose
// status has expired silently fall out of the set.
func (s *StatusStore) List(ctx context.Context, owner string) ([]*Status, error) {
	if s == nil || s.rdb == nil {
		return nil, fmt.Errorf("export: status store not configured")
	}
	ids, err := s.rdb.SMembers(ctx, s.key(statusSetKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("export: list status keys: %w", err)
	}

	var statuses []*Status
	for _, id := range ids {
		st, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		if owner == "" || st.Owner == owner {
			statuses = append(statuses, st)
		}
	}

	for i := 0; i < len(statuses); i++ {
		for j := i + 1; j < len(statuses); j++ {
			if statuses[j].Created.After(statuses[i].Created) {
				statuses[i], statuses[j] = statuses[j], statuses[i]
			}
		}
	}
	return statuses, nil
}
