package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/remiPra/chemins-essentiels-admin/core"
	"github.com/remiPra/chemins-essentiels-admin/locks"
	"github.com/sirupsen/logrus"
)

// State is the lifecycle position of an editing session.
type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateSaving  State = "saving"
)

// Direction is the way a block moves with the up/down buttons.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case Up, Down:
		return d, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// SaveListener is told about every successful save.
type SaveListener interface {
	PageSaved(pageID, sessionID string)
}

type (
	// Session owns the unsaved working copy of one page.
	Session struct {
		id     string
		store  core.PageStore
		locker locks.Locker
		notify SaveListener

		mu         sync.Mutex
		pageID     string
		state      State
		blocks     []core.Block
		focus      string
		revision   uint64
		saved      uint64
		lastErr    string
		lastActive time.Time
	}

	// Snapshot is a read-only copy of a session, safe to serialize.
	Snapshot struct {
		ID       string       `json:"id"`
		PageID   string       `json:"pageId"`
		State    State        `json:"state"`
		Blocks   []core.Block `json:"blocks"`
		Focus    string       `json:"focus,omitempty"`
		Dirty    bool         `json:"dirty"`
		CanSave  bool         `json:"canSave"`
		LastErr  string       `json:"lastError,omitempty"`
		Revision uint64       `json:"revision"`
	}
)

// NewSession returns a session in the loading state. Call Load before use.
// locker and notify may be nil.
func NewSession(id string, store core.PageStore, locker locks.Locker, notify SaveListener) *Session {
	if locker == nil {
		locker = locks.NewMemoryLocker()
	}
	return &Session{
		id:         id,
		store:      store,
		locker:     locker,
		notify:     notify,
		state:      StateLoading,
		lastActive: time.Now(),
	}
}

func (s *Session) ID() string { return s.id }

// Load fetches the stored document for pageID into the working copy. A page
// that was never saved starts as a single placeholder heading.
func (s *Session) Load(ctx context.Context, pageID string) error {
	log := logrus.WithFields(logrus.Fields{"session_id": s.id, "page_id": pageID})

	s.mu.Lock()
	s.pageID = pageID
	s.state = StateLoading
	s.mu.Unlock()

	doc, err := s.store.GetPage(ctx, pageID)
	switch {
	case errors.Is(err, core.ErrNotFound):
		log.Info("Page has no stored document, starting from default")
		doc = core.DefaultDocument(pageID)
	case err != nil:
		log.WithError(err).Error("Failed to load page")
		return &core.LoadFailure{PageID: pageID, Err: err}
	default:
		if err := doc.Validate(); err != nil {
			log.WithError(err).Error("Stored page is malformed")
			return &core.LoadFailure{PageID: pageID, Err: err}
		}
		if len(doc.Blocks) == 0 {
			doc = core.DefaultDocument(pageID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = doc.Clone().Blocks
	s.state = StateReady
	s.focus = ""
	s.revision, s.saved = 0, 0
	s.lastErr = ""
	s.touch()
	log.WithField("blocks", len(s.blocks)).Info("Page loaded into editor")
	return nil
}

// AddBlock appends an empty block and focuses it.
func (s *Session) AddBlock(t core.BlockType) (core.Block, error) {
	if !t.Valid() {
		return core.Block{}, fmt.Errorf("%w: unknown block type %q", core.ErrInvalidBlock, t)
	}
	b := core.NewBlock(t)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = append(s.blocks, b)
	s.focus = b.ID
	s.changed()
	return b, nil
}

// EditBlock replaces the content of a block. Unknown ids are ignored.
func (s *Session) EditBlock(id, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := core.IndexOf(s.blocks, id)
	if i < 0 {
		s.touch()
		return false
	}
	s.blocks[i].Content = content
	s.changed()
	return true
}

// SelectImage sets an image block's content to a URL chosen in the media
// picker. The URL is treated exactly like typed content.
func (s *Session) SelectImage(id, url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := core.IndexOf(s.blocks, id)
	if i < 0 || s.blocks[i].Type != core.BlockImage {
		s.touch()
		return false
	}
	s.blocks[i].Content = url
	s.changed()
	return true
}

// DeleteBlock removes a block. Any delete on a single-block page is refused
// with core.ErrGuardRejection, whatever the id. Otherwise unknown ids are ignored.
func (s *Session) DeleteBlock(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !core.IsRemovable(s.blocks) {
		s.touch()
		return core.ErrGuardRejection
	}
	i := core.IndexOf(s.blocks, id)
	if i < 0 {
		s.touch()
		return nil
	}
	s.blocks = append(s.blocks[:i], s.blocks[i+1:]...)
	if s.focus == id {
		s.focus = ""
	}
	s.changed()
	return nil
}

// MoveBlock swaps a block with its neighbour. Moving past either end is a no-op.
func (s *Session) MoveBlock(id string, dir Direction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := core.IndexOf(s.blocks, id)
	if i < 0 {
		s.touch()
		return false
	}

	var j int
	switch dir {
	case Up:
		j = i - 1
	case Down:
		j = i + 1
	default:
		return false
	}
	if j < 0 || j >= len(s.blocks) {
		s.touch()
		return false
	}

	s.blocks[i], s.blocks[j] = s.blocks[j], s.blocks[i]
	s.changed()
	return true
}

// Reorder handles a drag and drop: the dragged block is taken out and put back
// at the index the target occupied when it was dropped on.
func (s *Session) Reorder(draggedID, targetID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := core.IndexOf(s.blocks, draggedID)
	to := core.IndexOf(s.blocks, targetID)
	if from < 0 || to < 0 || from == to {
		s.touch()
		return false
	}

	moved := s.blocks[from]
	s.blocks = append(s.blocks[:from], s.blocks[from+1:]...)
	s.blocks = append(s.blocks[:to], append([]core.Block{moved}, s.blocks[to:]...)...)
	s.changed()
	return true
}

// Save overwrites the stored page with the working copy. Edits made while the
// save is in flight stay in the working copy and keep it dirty. On failure the
// working copy is kept for a retry and a *core.SaveFailure is returned.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateReady {
		state := s.state
		s.mu.Unlock()
		if state == StateSaving {
			return core.ErrSaveInProgress
		}
		return fmt.Errorf("session %s cannot save while %s", s.id, state)
	}
	pageID := s.pageID
	doc := &core.Document{PageID: pageID, Blocks: append([]core.Block(nil), s.blocks...)}
	rev := s.revision
	s.state = StateSaving
	s.touch()
	s.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{"session_id": s.id, "page_id": pageID, "blocks": len(doc.Blocks)})

	err := s.put(ctx, doc)

	s.mu.Lock()
	s.state = StateReady
	if err != nil {
		if !errors.Is(err, core.ErrSaveInProgress) {
			s.lastErr = err.Error()
		}
		s.mu.Unlock()
		log.WithError(err).Error("Failed to save page")
		return err
	}
	s.saved = rev
	s.lastErr = ""
	s.mu.Unlock()

	log.Info("Page saved")
	if s.notify != nil {
		s.notify.PageSaved(pageID, s.id)
	}
	return nil
}

func (s *Session) put(ctx context.Context, doc *core.Document) error {
	unlock, ok, err := s.locker.TryLock(ctx, doc.PageID)
	if err != nil {
		return &core.SaveFailure{PageID: doc.PageID, Err: err}
	}
	if !ok {
		return core.ErrSaveInProgress
	}
	defer unlock()

	if err := s.store.PutPage(ctx, doc); err != nil {
		return &core.SaveFailure{PageID: doc.PageID, Err: err}
	}
	return nil
}

// Blocks returns a copy of the working sequence.
func (s *Session) Blocks() []core.Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Block(nil), s.blocks...)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:       s.id,
		PageID:   s.pageID,
		State:    s.state,
		Blocks:   append([]core.Block{}, s.blocks...),
		Focus:    s.focus,
		Dirty:    s.revision != s.saved,
		CanSave:  s.state == StateReady,
		LastErr:  s.lastErr,
		Revision: s.revision,
	}
}

// IdleSince reports when the session was last used.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// callers hold s.mu
func (s *Session) changed() {
	s.revision++
	s.touch()
}

func (s *Session) touch() {
	s.lastActive = time.Now()
}
