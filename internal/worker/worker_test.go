package worker

import (
	"context"
	"path"
	"sync"
	"time"

	"tunesync/internal/core"
	"tunesync/internal/task"
)

// memStore is an in-memory TaskStore. It keeps encoded records like Redis
// does and tracks every saved status for pacing assertions.
type memStore struct {
	mu          sync.Mutex
	records     map[string]string
	queue       []string
	savedStates []task.TaskStatus
	afterSave   func(key string, rec *task.Record)
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]string)}
}

func (s *memStore) put(key string, rec *task.Record) {
	raw, err := rec.Encode()
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	s.records[key] = raw
	s.mu.Unlock()
}

func (s *memStore) get(key string) *task.Record {
	s.mu.Lock()
	raw, ok := s.records[key]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	rec, err := task.DecodeRecord(raw)
	if err != nil {
		panic(err)
	}
	return rec
}

func (s *memStore) enqueue(key string) {
	s.mu.Lock()
	s.queue = append(s.queue, key)
	s.mu.Unlock()
}

func (s *memStore) PopNext(ctx context.Context, timeout time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		// Keep idle pool loops from spinning hot in tests.
		time.Sleep(time.Millisecond)
		return "", nil
	}
	key := s.queue[0]
	s.queue = s.queue[1:]
	return key, nil
}

func (s *memStore) Load(ctx context.Context, key string) (*task.Record, error) {
	return s.get(key), nil
}

func (s *memStore) Save(ctx context.Context, key string, rec *task.Record, ttl time.Duration) error {
	s.put(key, rec)
	s.mu.Lock()
	s.savedStates = append(s.savedStates, rec.Status)
	hook := s.afterSave
	s.mu.Unlock()
	if hook != nil {
		hook(key, rec)
	}
	return nil
}

func (s *memStore) Touch(ctx context.Context, key, workerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.records[key]
	if !ok {
		return nil
	}
	rec, err := task.DecodeRecord(raw)
	if err != nil {
		return err
	}
	if rec.Status.Terminal() {
		return nil
	}
	rec.LastHeartbeat = time.Now().Unix()
	rec.WorkerID = workerID
	encoded, err := rec.Encode()
	if err != nil {
		return err
	}
	s.records[key] = encoded
	return nil
}

func (s *memStore) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for key := range s.records {
		if ok, _ := path.Match(pattern, key); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *memStore) countSaved(status task.TaskStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, st := range s.savedStates {
		if st == status {
			n++
		}
	}
	return n
}

// transferPort is a scriptable provider for transfer tests. Matching succeeds
// through the origin-service shortcut when tracks carry this port's service.
type transferPort struct {
	core.ProviderPort

	service   core.ServiceName
	playlists map[string]core.Playlist
	tracks    map[string][]core.Track

	mu       sync.Mutex
	inserted [][]string
}

func (p *transferPort) ServiceName() core.ServiceName       { return p.service }
func (p *transferPort) SupportsDirectISRCQuerying() bool    { return false }
func (p *transferPort) SupportsMusicBrainzIDQuerying() bool { return false }

func (p *transferPort) GetPlaylist(ctx context.Context, playlistID string) (core.Playlist, error) {
	playlist, ok := p.playlists[playlistID]
	if !ok {
		return core.Playlist{}, core.ErrPlaylistNotFound
	}
	return playlist, nil
}

func (p *transferPort) GetPlaylistTracks(ctx context.Context, playlistID string, limit int) ([]core.Track, error) {
	if _, ok := p.playlists[playlistID]; !ok {
		return nil, core.ErrPlaylistNotFound
	}
	return p.tracks[playlistID], nil
}

func (p *transferPort) CreatePlaylist(ctx context.Context, name string) (core.Playlist, error) {
	return core.Playlist{ServiceID: "created", Name: name, ServiceName: p.service}, nil
}

func (p *transferPort) AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error {
	p.mu.Lock()
	p.inserted = append(p.inserted, trackIDs)
	p.mu.Unlock()
	return nil
}

func (p *transferPort) GetTrack(ctx context.Context, trackID string) (core.Track, error) {
	for _, tracks := range p.tracks {
		for _, track := range tracks {
			if track.ServiceID == trackID {
				return track, nil
			}
		}
	}
	return core.Track{}, core.ErrTrackNotFound
}

func (p *transferPort) SearchTracks(ctx context.Context, query string, limit int) ([]core.Track, error) {
	return nil, nil
}

type fakeFactory struct {
	ports map[core.ServiceName]core.ProviderPort
	err   error
}

func (f *fakeFactory) Driver(ctx context.Context, userID int64, service core.ServiceName) (core.ProviderPort, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ports[service], nil
}

type fakeUsers struct {
	users map[int64]*core.User
}

func (u *fakeUsers) Get(ctx context.Context, id int64) (*core.User, error) {
	return u.users[id], nil
}
