package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/replaykit/replay/pkg/api"
)

type (
	// Redis implements Store on a single go-redis client. Records are
	// stored as JSON blobs under typed keys with set indexes for listing
	Redis struct {
		client *redis.Client
	}

	redisScenarios struct{ *Redis }
	redisSessions  struct{ *Redis }
	redisFlows     struct{ *Redis }
)

const (
	scenarioKeyPrefix = "replay:scenario:"
	scenarioIndexKey  = "replay:scenarios"
	resultKeyPrefix   = "replay:result:"
	resultListPrefix  = "replay:scenario-results:"

	sessionKeyPrefix  = "replay:session:"
	sessionIndexKey   = "replay:sessions"
	eventsKeyPrefix   = "replay:session-events:"
	eventIDsKeyPrefix = "replay:session-event-ids:"

	flowKeyPrefix        = "replay:flow:"
	flowIndexKey         = "replay:flows"
	flowResultKeyPrefix  = "replay:flowresult:"
	flowResultListPrefix = "replay:flow-results:"
)

// NewRedis connects a Store to the given Redis instance
func NewRedis(opts *redis.Options) *Redis {
	return &Redis{client: redis.NewClient(opts)}
}

func (r *Redis) Scenarios() Scenarios { return &redisScenarios{r} }
func (r *Redis) Sessions() Sessions   { return &redisSessions{r} }
func (r *Redis) Flows() Flows         { return &redisFlows{r} }

// Ping checks connectivity
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) create(
	ctx context.Context, key, index, id string, rec any,
) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, key, data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, id)
	}
	return r.client.SAdd(ctx, index, id).Err()
}

func (r *Redis) get(
	ctx context.Context, key string, notFound error, id string, rec any,
) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return fmt.Errorf("%w: %s", notFound, id)
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, rec)
}

func (r *Redis) put(ctx context.Context, key string, rec any) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, 0).Err()
}

// mgetEach fetches each indexed record, skipping entries whose blob has
// been deleted out from under the index
func mgetEach[T any](
	ctx context.Context, r *Redis, index, prefix string,
) ([]*T, error) {
	ids, err := r.client.SMembers(ctx, index).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = prefix + id
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	res := make([]*T, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		rec := new(T)
		if err := json.Unmarshal([]byte(s), rec); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, nil
}

// Scenarios

func (r *redisScenarios) Create(
	ctx context.Context, s *api.Scenario,
) error {
	if err := s.Validate(); err != nil {
		return err
	}
	return r.create(
		ctx, scenarioKeyPrefix+string(s.ID), scenarioIndexKey,
		string(s.ID), s,
	)
}

func (r *redisScenarios) Get(
	ctx context.Context, id api.ScenarioID,
) (*api.Scenario, error) {
	var s api.Scenario
	err := r.get(
		ctx, scenarioKeyPrefix+string(id), ErrScenarioNotFound,
		string(id), &s,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *redisScenarios) List(
	ctx context.Context, page, limit int,
) ([]*api.Scenario, error) {
	res, err := mgetEach[api.Scenario](
		ctx, r.Redis, scenarioIndexKey, scenarioKeyPrefix,
	)
	if err != nil {
		return nil, err
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt != res[j].CreatedAt {
			return res[i].CreatedAt < res[j].CreatedAt
		}
		return res[i].ID < res[j].ID
	})
	return paginate(res, page, limit), nil
}

// paginate slices one 1-based page out of the full listing; a
// non-positive limit means no paging
func paginate[T any](items []*T, page, limit int) []*T {
	if limit <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return nil
	}
	end := min(start+limit, len(items))
	return items[start:end]
}

func (r *redisScenarios) Update(
	ctx context.Context, id api.ScenarioID, p *api.ScenarioPatch,
) (*api.Scenario, error) {
	s, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Apply(p)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := r.put(ctx, scenarioKeyPrefix+string(id), s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *redisScenarios) Delete(
	ctx context.Context, id api.ScenarioID,
) error {
	n, err := r.client.Del(ctx, scenarioKeyPrefix+string(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrScenarioNotFound, id)
	}
	if err := r.client.SRem(ctx, scenarioIndexKey, string(id)).Err(); err != nil {
		return err
	}
	return r.dropResults(ctx, id)
}

func (r *redisScenarios) dropResults(
	ctx context.Context, id api.ScenarioID,
) error {
	listKey := resultListPrefix + string(id)
	ids, err := r.client.LRange(ctx, listKey, 0, -1).Result()
	if err != nil {
		return err
	}
	for _, rid := range ids {
		if err := r.client.Del(ctx, resultKeyPrefix+rid).Err(); err != nil {
			return err
		}
	}
	return r.client.Del(ctx, listKey).Err()
}

func (r *redisScenarios) AddResult(
	ctx context.Context, res *api.StoredResult,
) error {
	exists, err := r.client.Exists(
		ctx, scenarioKeyPrefix+string(res.ScenarioID),
	).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrScenarioNotFound, res.ScenarioID)
	}

	if err := r.put(ctx, resultKeyPrefix+string(res.ID), res); err != nil {
		return err
	}
	return r.client.RPush(
		ctx, resultListPrefix+string(res.ScenarioID), string(res.ID),
	).Err()
}

func (r *redisScenarios) ListResults(
	ctx context.Context, id api.ScenarioID,
) ([]*api.StoredResult, error) {
	ids, err := r.client.LRange(
		ctx, resultListPrefix+string(id), 0, -1,
	).Result()
	if err != nil {
		return nil, err
	}

	res := make([]*api.StoredResult, 0, len(ids))
	for _, rid := range ids {
		var sr api.StoredResult
		err := r.get(ctx, resultKeyPrefix+rid, ErrScenarioNotFound, rid, &sr)
		if err != nil {
			return nil, err
		}
		res = append(res, &sr)
	}
	return res, nil
}

// Sessions

func (r *redisSessions) Create(
	ctx context.Context, s *api.RecordingSession,
) error {
	if err := s.Validate(); err != nil {
		return err
	}
	return r.create(
		ctx, sessionKeyPrefix+string(s.ID), sessionIndexKey,
		string(s.ID), s,
	)
}

func (r *redisSessions) Get(
	ctx context.Context, id api.SessionID,
) (*api.RecordingSession, error) {
	var s api.RecordingSession
	err := r.get(
		ctx, sessionKeyPrefix+string(id), ErrSessionNotFound,
		string(id), &s,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *redisSessions) GetWithEvents(
	ctx context.Context, id api.SessionID,
) (*api.SessionWithEvents, error) {
	s, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	events, err := r.Events(ctx, id)
	if err != nil {
		return nil, err
	}
	return &api.SessionWithEvents{
		RecordingSession: *s,
		Events:           events,
	}, nil
}

func (r *redisSessions) List(
	ctx context.Context,
) ([]*api.RecordingSession, error) {
	res, err := mgetEach[api.RecordingSession](
		ctx, r.Redis, sessionIndexKey, sessionKeyPrefix,
	)
	if err != nil {
		return nil, err
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].StartedAt != res[j].StartedAt {
			return res[i].StartedAt < res[j].StartedAt
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (r *redisSessions) Update(
	ctx context.Context, id api.SessionID, p *api.SessionPatch,
) (*api.RecordingSession, error) {
	s, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Apply(p)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := r.put(ctx, sessionKeyPrefix+string(id), s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *redisSessions) Stop(
	ctx context.Context, id api.SessionID,
) (*api.RecordingSession, error) {
	s, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Status == api.SessionStopped {
		return nil, fmt.Errorf("%w: %s", api.ErrSessionStopped, id)
	}
	s.Status = api.SessionStopped
	s.StoppedAt = api.Now()
	if err := r.put(ctx, sessionKeyPrefix+string(id), s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *redisSessions) Delete(
	ctx context.Context, id api.SessionID,
) error {
	n, err := r.client.Del(ctx, sessionKeyPrefix+string(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err := r.client.SRem(ctx, sessionIndexKey, string(id)).Err(); err != nil {
		return err
	}
	return r.client.Del(
		ctx, eventsKeyPrefix+string(id), eventIDsKeyPrefix+string(id),
	).Err()
}

func (r *redisSessions) AddEvent(
	ctx context.Context, id api.SessionID, event *api.RecordedEvent,
) (bool, error) {
	if err := r.requireSession(ctx, id); err != nil {
		return false, err
	}
	return r.appendEvent(ctx, id, event)
}

func (r *redisSessions) AddEvents(
	ctx context.Context, id api.SessionID, events []api.RecordedEvent,
) (int, error) {
	if err := r.requireSession(ctx, id); err != nil {
		return 0, err
	}

	accepted := 0
	for i := range events {
		added, err := r.appendEvent(ctx, id, &events[i])
		if err != nil {
			return accepted, err
		}
		if added {
			accepted++
		}
	}
	return accepted, nil
}

func (r *redisSessions) requireSession(
	ctx context.Context, id api.SessionID,
) error {
	exists, err := r.client.Exists(
		ctx, sessionKeyPrefix+string(id),
	).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// appendEvent accepts an event only if its ID has not been seen before
func (r *redisSessions) appendEvent(
	ctx context.Context, id api.SessionID, e *api.RecordedEvent,
) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, err
	}
	added, err := r.client.SAdd(
		ctx, eventIDsKeyPrefix+string(id), e.ID,
	).Result()
	if err != nil {
		return false, err
	}
	if added == 0 {
		return false, nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return false, err
	}
	err = r.client.RPush(ctx, eventsKeyPrefix+string(id), data).Err()
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *redisSessions) Events(
	ctx context.Context, id api.SessionID,
) ([]api.RecordedEvent, error) {
	raw, err := r.client.LRange(
		ctx, eventsKeyPrefix+string(id), 0, -1,
	).Result()
	if err != nil {
		return nil, err
	}
	res := make([]api.RecordedEvent, 0, len(raw))
	for _, s := range raw {
		var e api.RecordedEvent
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, nil
}

func (r *redisSessions) ClearEvents(
	ctx context.Context, id api.SessionID,
) error {
	return r.client.Del(
		ctx, eventsKeyPrefix+string(id), eventIDsKeyPrefix+string(id),
	).Err()
}

// Flows

func (r *redisFlows) Create(ctx context.Context, f *api.UserFlow) error {
	if err := f.Validate(); err != nil {
		return err
	}
	return r.create(
		ctx, flowKeyPrefix+string(f.ID), flowIndexKey, string(f.ID), f,
	)
}

func (r *redisFlows) Get(
	ctx context.Context, id api.FlowID,
) (*api.UserFlow, error) {
	var f api.UserFlow
	err := r.get(
		ctx, flowKeyPrefix+string(id), ErrFlowNotFound, string(id), &f,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *redisFlows) List(ctx context.Context) ([]*api.UserFlow, error) {
	res, err := mgetEach[api.UserFlow](
		ctx, r.Redis, flowIndexKey, flowKeyPrefix,
	)
	if err != nil {
		return nil, err
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt != res[j].CreatedAt {
			return res[i].CreatedAt < res[j].CreatedAt
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (r *redisFlows) Update(
	ctx context.Context, id api.FlowID, p *api.FlowPatch,
) (*api.UserFlow, error) {
	f, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	f.Apply(p)
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if err := r.put(ctx, flowKeyPrefix+string(id), f); err != nil {
		return nil, err
	}
	return f, nil
}

func (r *redisFlows) Delete(ctx context.Context, id api.FlowID) error {
	n, err := r.client.Del(ctx, flowKeyPrefix+string(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrFlowNotFound, id)
	}
	if err := r.client.SRem(ctx, flowIndexKey, string(id)).Err(); err != nil {
		return err
	}
	return r.dropResults(ctx, id)
}

func (r *redisFlows) dropResults(
	ctx context.Context, id api.FlowID,
) error {
	listKey := flowResultListPrefix + string(id)
	ids, err := r.client.LRange(ctx, listKey, 0, -1).Result()
	if err != nil {
		return err
	}
	for _, rid := range ids {
		err := r.client.Del(ctx, flowResultKeyPrefix+rid).Err()
		if err != nil {
			return err
		}
	}
	return r.client.Del(ctx, listKey).Err()
}

func (r *redisFlows) AddResult(
	ctx context.Context, res *api.FlowExecutionResult,
) error {
	exists, err := r.client.Exists(
		ctx, flowKeyPrefix+string(res.FlowID),
	).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrFlowNotFound, res.FlowID)
	}

	err = r.put(ctx, flowResultKeyPrefix+string(res.ID), res)
	if err != nil {
		return err
	}
	return r.client.RPush(
		ctx, flowResultListPrefix+string(res.FlowID), string(res.ID),
	).Err()
}

func (r *redisFlows) ListResults(
	ctx context.Context, id api.FlowID,
) ([]*api.FlowExecutionResult, error) {
	ids, err := r.client.LRange(
		ctx, flowResultListPrefix+string(id), 0, -1,
	).Result()
	if err != nil {
		return nil, err
	}

	res := make([]*api.FlowExecutionResult, 0, len(ids))
	for _, rid := range ids {
		var fr api.FlowExecutionResult
		err := r.get(ctx, flowResultKeyPrefix+rid, ErrFlowNotFound, rid, &fr)
		if err != nil {
			return nil, err
		}
		res = append(res, &fr)
	}
	return res, nil
}
