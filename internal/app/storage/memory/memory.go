package memory

import (
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/domu-platform/domu/internal/app/domain/amenity"
	"github.com/domu-platform/domu/internal/app/domain/building"
	"github.com/domu-platform/domu/internal/app/domain/chat"
	"github.com/domu-platform/domu/internal/app/domain/finance"
	"github.com/domu-platform/domu/internal/app/domain/forum"
	"github.com/domu-platform/domu/internal/app/domain/incident"
	"github.com/domu-platform/domu/internal/app/domain/library"
	"github.com/domu-platform/domu/internal/app/domain/parcel"
	"github.com/domu-platform/domu/internal/app/domain/poll"
	"github.com/domu-platform/domu/internal/app/domain/staff"
	"github.com/domu-platform/domu/internal/app/domain/task"
	"github.com/domu-platform/domu/internal/app/domain/unit"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/domain/visit"
	"github.com/domu-platform/domu/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu     sync.RWMutex
	nextID int64

	users        map[int64]user.User
	tokens       map[int64]user.Token
	buildings    map[int64]building.Building
	access       map[int64]map[int64]struct{} // user -> buildings
	buildingReqs map[int64]building.Request
	units        map[int64]unit.Unit
	periods      map[int64]finance.Period
	charges      map[int64]finance.Charge
	payments     map[int64]finance.Payment
	revisions    map[int64]finance.Revision
	visits       map[int64]visit.Visit
	accessLogs   map[int64]visit.AccessLog
	contacts     map[int64]visit.Contact
	incidents    map[int64]incident.Incident
	parcels      map[int64]parcel.Parcel
	polls        map[int64]poll.Poll
	pollOptions  map[int64]poll.Option
	votes        map[int64]poll.Vote
	amenities    map[int64]amenity.Amenity
	timeSlots    map[int64]amenity.TimeSlot
	reservations map[int64]amenity.Reservation
	rooms        map[int64]chat.Room
	participants map[int64][]chat.Participant
	messages     map[int64]chat.Message
	chatRequests map[int64]chat.Request
	forumCats    map[int64]forum.Category
	threads      map[int64]forum.Thread
	staffMembers map[int64]staff.Member
	tasks        map[int64]task.Task
	documents    map[int64]library.Document
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.TokenStore = (*Store)(nil)
var _ storage.BuildingStore = (*Store)(nil)
var _ storage.UnitStore = (*Store)(nil)
var _ storage.FinanceStore = (*Store)(nil)
var _ storage.VisitStore = (*Store)(nil)
var _ storage.IncidentStore = (*Store)(nil)
var _ storage.ParcelStore = (*Store)(nil)
var _ storage.PollStore = (*Store)(nil)
var _ storage.AmenityStore = (*Store)(nil)
var _ storage.ChatStore = (*Store)(nil)
var _ storage.ForumStore = (*Store)(nil)
var _ storage.StaffStore = (*Store)(nil)
var _ storage.TaskStore = (*Store)(nil)
var _ storage.LibraryStore = (*Store)(nil)

// New creates an empty store with the default forum categories.
func New() *Store {
	s := &Store{
		nextID:       1,
		users:        make(map[int64]user.User),
		tokens:       make(map[int64]user.Token),
		buildings:    make(map[int64]building.Building),
		access:       make(map[int64]map[int64]struct{}),
		buildingReqs: make(map[int64]building.Request),
		units:        make(map[int64]unit.Unit),
		periods:      make(map[int64]finance.Period),
		charges:      make(map[int64]finance.Charge),
		payments:     make(map[int64]finance.Payment),
		revisions:    make(map[int64]finance.Revision),
		visits:       make(map[int64]visit.Visit),
		accessLogs:   make(map[int64]visit.AccessLog),
		contacts:     make(map[int64]visit.Contact),
		incidents:    make(map[int64]incident.Incident),
		parcels:      make(map[int64]parcel.Parcel),
		polls:        make(map[int64]poll.Poll),
		pollOptions:  make(map[int64]poll.Option),
		votes:        make(map[int64]poll.Vote),
		amenities:    make(map[int64]amenity.Amenity),
		timeSlots:    make(map[int64]amenity.TimeSlot),
		reservations: make(map[int64]amenity.Reservation),
		rooms:        make(map[int64]chat.Room),
		participants: make(map[int64][]chat.Participant),
		messages:     make(map[int64]chat.Message),
		chatRequests: make(map[int64]chat.Request),
		forumCats:    make(map[int64]forum.Category),
		threads:      make(map[int64]forum.Thread),
		staffMembers: make(map[int64]staff.Member),
		tasks:        make(map[int64]task.Task),
		documents:    make(map[int64]library.Document),
	}
	for _, name := range forum.DefaultCategories {
		id := s.nextIDLocked()
		s.forumCats[id] = forum.Category{ID: id, Name: name}
	}
	return s
}

func (s *Store) nextIDLocked() int64 {
	id := s.nextID
	s.nextID++
	return id
}

func notFound(kind string, id interface{}) error {
	return fmt.Errorf("%s %v not found: %w", kind, id, sql.ErrNoRows)
}

// sortByID orders any slice ascending by the id extracted with key.
func sortByID[T any](items []T, key func(T) int64) {
	sort.Slice(items, func(i, j int) bool { return key(items[i]) < key(items[j]) })
}

func cloneInt64s(src []int64) []int64 {
	if len(src) == 0 {
		return nil
	}
	return append([]int64(nil), src...)
}
