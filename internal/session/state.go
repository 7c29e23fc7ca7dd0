package session

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"liveclass/pkg/types"
)

// State is the shared state of one session.
type State struct {
	ID              string
	CreatedAt       time.Time
	MaxParticipants int
	FocusMode       bool

	document *types.DocumentState
	pages    map[int][]types.Annotation
	strokes  map[string]*liveStroke
	tokens   map[string]Grant
	throttle time.Duration
	now      func() time.Time
}

// Grant is what a resume token entitles its holder to.
type Grant struct {
	UserName  string
	IsTeacher bool
}

type liveStroke struct {
	owner    string
	start    types.StrokeStart
	lastMove time.Time
	seen     time.Time
}

// minStrokeIdle is the floor for how long a stroke may go without a move
// before StartStroke discards it as abandoned.
const minStrokeIdle = 30 * time.Second

func newState(id string, d Defaults, now func() time.Time) *State {
	return &State{
		ID:              id,
		CreatedAt:       now(),
		MaxParticipants: d.MaxParticipants,
		pages:           make(map[int][]types.Annotation),
		strokes:         make(map[string]*liveStroke),
		tokens:          make(map[string]Grant),
		throttle:        d.StrokeThrottle,
		now:             now,
	}
}

// Document returns a copy of the current document state, or nil.
func (s *State) Document() *types.DocumentState {
	if s.document == nil {
		return nil
	}
	doc := *s.document
	return &doc
}

// SetDocument replaces the document. A nil doc clears it.
func (s *State) SetDocument(doc *types.DocumentState) {
	if doc == nil {
		s.document = nil
		return
	}
	cp := *doc
	s.document = &cp
}

// SetPage changes only the current page. It reports false when no document
// is set.
func (s *State) SetPage(page int) bool {
	if s.document == nil {
		return false
	}
	s.document.CurrentPage = page
	return true
}

// SetZoom changes only the zoom. It reports false when no document is set.
func (s *State) SetZoom(zoom float64) bool {
	if s.document == nil {
		return false
	}
	s.document.Zoom = zoom
	return true
}

// Append adds a durable action to the end of its page log.
func (s *State) Append(a types.Annotation) {
	s.pages[a.Page()] = append(s.pages[a.Page()], a)
}

// ClearPage empties one page's log and leaves the others untouched.
func (s *State) ClearPage(page int) {
	delete(s.pages, page)
}

func (s *State) ClearAll() {
	s.pages = make(map[int][]types.Annotation)
}

// PageLog returns a copy of one page's actions in append order.
func (s *State) PageLog(page int) []types.Annotation {
	return append([]types.Annotation(nil), s.pages[page]...)
}

// History returns a copy of every non-empty page log.
func (s *State) History() map[int][]types.Annotation {
	out := make(map[int][]types.Annotation, len(s.pages))
	for page, log := range s.pages {
		if len(log) > 0 {
			out[page] = append([]types.Annotation(nil), log...)
		}
	}
	return out
}

// Pages lists the pages that hold actions, ascending.
func (s *State) Pages() []int {
	pages := make([]int, 0, len(s.pages))
	for page, log := range s.pages {
		if len(log) > 0 {
			pages = append(pages, page)
		}
	}
	sort.Ints(pages)
	return pages
}

func (s *State) ActionCount() int {
	n := 0
	for _, log := range s.pages {
		n += len(log)
	}
	return n
}

// StartStroke opens a live stroke owned by connID. Reusing a stroke id
// restarts it. Strokes that never saw an end and have been idle past the
// stroke idle limit are discarded first.
func (s *State) StartStroke(connID string, ev types.StrokeStart) {
	now := s.now()
	limit := s.strokeIdle()
	for id, st := range s.strokes {
		if now.Sub(st.seen) > limit {
			delete(s.strokes, id)
		}
	}
	s.strokes[ev.StrokeID] = &liveStroke{owner: connID, start: ev, seen: now}
}

// strokeIdle is a generous multiple of the move throttle, never below
// minStrokeIdle.
func (s *State) strokeIdle() time.Duration {
	if d := 1000 * s.throttle; d > minStrokeIdle {
		return d
	}
	return minStrokeIdle
}

// MoveStroke reports whether a move should be relayed: the stroke must be
// open, owned by connID, and the previous relayed move must be at least
// the throttle interval old.
func (s *State) MoveStroke(connID string, ev types.StrokeMove) bool {
	st, ok := s.strokes[ev.StrokeID]
	if !ok || st.owner != connID {
		return false
	}
	now := s.now()
	st.seen = now
	if !st.lastMove.IsZero() && now.Sub(st.lastMove) < s.throttle {
		return false
	}
	st.lastMove = now
	return true
}

// EndStroke closes a live stroke and returns the durable path it produces.
// Style fields missing from the end event come from the matching start; an
// end without a known start must carry its own page.
func (s *State) EndStroke(connID string, ev types.StrokeEnd) (types.PathAction, bool) {
	path := types.PathAction{
		Points:    append([]types.Point(nil), ev.Points...),
		Color:     ev.Color,
		LineWidth: ev.LineWidth,
		PageNum:   ev.PageNum,
	}
	if ev.IsEraser != nil {
		path.IsEraser = *ev.IsEraser
	}

	if st, ok := s.strokes[ev.StrokeID]; ok && st.owner == connID {
		delete(s.strokes, ev.StrokeID)
		if path.Color == "" {
			path.Color = st.start.Color
		}
		if path.LineWidth == 0 {
			path.LineWidth = st.start.LineWidth
		}
		if ev.IsEraser == nil {
			path.IsEraser = st.start.IsEraser
		}
		if path.PageNum == 0 {
			path.PageNum = st.start.PageNum
		}
	}

	if path.PageNum < 1 || len(path.Points) == 0 {
		return types.PathAction{}, false
	}
	return path, true
}

// DropStrokes discards every live stroke owned by connID.
func (s *State) DropStrokes(connID string) {
	for id, st := range s.strokes {
		if st.owner == connID {
			delete(s.strokes, id)
		}
	}
}

// LiveStrokes counts open strokes.
func (s *State) LiveStrokes() int { return len(s.strokes) }

// IssueToken returns a new resume token for the given identity and
// revokes tokens previously issued to the same name.
func (s *State) IssueToken(userName string, isTeacher bool) string {
	for tok, g := range s.tokens {
		if g.UserName == userName {
			delete(s.tokens, tok)
		}
	}
	tok := uuid.NewString()
	s.tokens[tok] = Grant{UserName: userName, IsTeacher: isTeacher}
	return tok
}

// RedeemToken reports whether token was issued to exactly this identity.
// A redeemed token is consumed.
func (s *State) RedeemToken(token, userName string, isTeacher bool) bool {
	if token == "" {
		return false
	}
	g, ok := s.tokens[token]
	if !ok || g.UserName != userName || g.IsTeacher != isTeacher {
		return false
	}
	delete(s.tokens, token)
	return true
}
