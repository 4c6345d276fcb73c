package storage

import (
	"context"
	"time"

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
)

// Every Get method returns an error wrapping sql.ErrNoRows when the record
// does not exist.

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id int64) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	ListUsersByUnit(ctx context.Context, unitID int64) ([]user.User, error)
	// ListUsersByBuilding returns users granted access to the building or
	// linked to one of its units.
	ListUsersByBuilding(ctx context.Context, buildingID int64) ([]user.User, error)
}

// TokenStore persists confirmation and password reset tokens.
type TokenStore interface {
	CreateToken(ctx context.Context, t user.Token) (user.Token, error)
	GetToken(ctx context.Context, kind user.TokenKind, value string) (user.Token, error)
	MarkTokenUsed(ctx context.Context, id int64, usedAt time.Time) error
	// PurgeTokens deletes tokens used or expired before the cutoff.
	PurgeTokens(ctx context.Context, before time.Time) (int64, error)
}

// BuildingStore persists buildings, access grants and registration requests.
type BuildingStore interface {
	CreateBuilding(ctx context.Context, b building.Building) (building.Building, error)
	GetBuilding(ctx context.Context, id int64) (building.Building, error)
	ListBuildingsForUser(ctx context.Context, userID int64) ([]building.Building, error)
	GrantBuildingAccess(ctx context.Context, userID, buildingID int64) error
	HasBuildingAccess(ctx context.Context, userID, buildingID int64) (bool, error)

	CreateBuildingRequest(ctx context.Context, r building.Request) (building.Request, error)
	UpdateBuildingRequest(ctx context.Context, r building.Request) (building.Request, error)
	GetBuildingRequest(ctx context.Context, id int64) (building.Request, error)
	ListBuildingRequests(ctx context.Context, status string) ([]building.Request, error)
}

// UnitStore persists housing units. Deleted units are excluded from listings.
type UnitStore interface {
	CreateUnit(ctx context.Context, u unit.Unit) (unit.Unit, error)
	UpdateUnit(ctx context.Context, u unit.Unit) (unit.Unit, error)
	GetUnit(ctx context.Context, id int64) (unit.Unit, error)
	ListUnits(ctx context.Context, buildingID int64) ([]unit.Unit, error)
}

// FinanceStore persists common expense periods, charges, payments and
// revisions.
type FinanceStore interface {
	CreatePeriod(ctx context.Context, p finance.Period) (finance.Period, error)
	UpdatePeriod(ctx context.Context, p finance.Period) (finance.Period, error)
	GetPeriod(ctx context.Context, id int64) (finance.Period, error)
	FindPeriod(ctx context.Context, buildingID int64, year, month int) (finance.Period, error)
	ListPeriods(ctx context.Context, buildingID int64) ([]finance.Period, error)

	CreateCharges(ctx context.Context, charges []finance.Charge) ([]finance.Charge, error)
	UpdateCharge(ctx context.Context, c finance.Charge) (finance.Charge, error)
	GetCharge(ctx context.Context, id int64) (finance.Charge, error)
	ListChargesByPeriod(ctx context.Context, periodID int64) ([]finance.Charge, error)
	ListChargesByUnit(ctx context.Context, unitID int64) ([]finance.Charge, error)

	CreatePayment(ctx context.Context, p finance.Payment) (finance.Payment, error)
	GetPayment(ctx context.Context, id int64) (finance.Payment, error)
	ListPaymentsByCharges(ctx context.Context, chargeIDs []int64) ([]finance.Payment, error)

	CreateRevision(ctx context.Context, r finance.Revision) (finance.Revision, error)
	ListRevisions(ctx context.Context, periodID int64) ([]finance.Revision, error)
}

// VisitStore persists visitor authorizations, access logs and saved contacts.
type VisitStore interface {
	CreateVisit(ctx context.Context, v visit.Visit) (visit.Visit, error)
	UpdateVisit(ctx context.Context, v visit.Visit) (visit.Visit, error)
	GetVisit(ctx context.Context, id int64) (visit.Visit, error)
	ListVisitsByCreator(ctx context.Context, userID int64) ([]visit.Visit, error)
	ListVisitsByDocument(ctx context.Context, buildingID int64, document string) ([]visit.Visit, error)
	// ExpireVisits marks scheduled visits whose window ended before now.
	ExpireVisits(ctx context.Context, now time.Time) (int64, error)
	CreateAccessLog(ctx context.Context, l visit.AccessLog) (visit.AccessLog, error)

	CreateContact(ctx context.Context, c visit.Contact) (visit.Contact, error)
	GetContact(ctx context.Context, id, ownerID int64) (visit.Contact, error)
	ListContacts(ctx context.Context, ownerID int64, search string, limit int) ([]visit.Contact, error)
	DeleteContact(ctx context.Context, id, ownerID int64) error
}

// IncidentStore persists incident reports.
type IncidentStore interface {
	CreateIncident(ctx context.Context, i incident.Incident) (incident.Incident, error)
	UpdateIncident(ctx context.Context, i incident.Incident) (incident.Incident, error)
	GetIncident(ctx context.Context, id int64) (incident.Incident, error)
	ListIncidents(ctx context.Context, filter incident.Filter) ([]incident.Incident, error)
}

// ParcelStore persists parcels.
type ParcelStore interface {
	CreateParcel(ctx context.Context, p parcel.Parcel) (parcel.Parcel, error)
	UpdateParcel(ctx context.Context, p parcel.Parcel) (parcel.Parcel, error)
	GetParcel(ctx context.Context, id int64) (parcel.Parcel, error)
	ListParcels(ctx context.Context, filter parcel.Filter) ([]parcel.Parcel, error)
	DeleteParcel(ctx context.Context, id int64) error
}

// PollStore persists polls, options and votes. CreateVote reports a
// duplicate (poll, user) pair as a conflict.
type PollStore interface {
	CreatePoll(ctx context.Context, p poll.Poll, options []string) (poll.Poll, []poll.Option, error)
	UpdatePoll(ctx context.Context, p poll.Poll) (poll.Poll, error)
	GetPoll(ctx context.Context, id int64) (poll.Poll, error)
	ListPolls(ctx context.Context, buildingID int64) ([]poll.Poll, error)
	ListPollsDue(ctx context.Context, now time.Time) ([]poll.Poll, error)
	ListOptions(ctx context.Context, pollID int64) ([]poll.Option, error)
	CreateVote(ctx context.Context, v poll.Vote) (poll.Vote, error)
	ListVotes(ctx context.Context, pollID int64) ([]poll.Vote, error)
}

// AmenityStore persists amenities, their weekly slots and reservations.
type AmenityStore interface {
	CreateAmenity(ctx context.Context, a amenity.Amenity) (amenity.Amenity, error)
	UpdateAmenity(ctx context.Context, a amenity.Amenity) (amenity.Amenity, error)
	GetAmenity(ctx context.Context, id int64) (amenity.Amenity, error)
	ListAmenities(ctx context.Context, buildingID int64) ([]amenity.Amenity, error)
	DeleteAmenity(ctx context.Context, id int64) error

	ReplaceTimeSlots(ctx context.Context, amenityID int64, slots []amenity.TimeSlot) ([]amenity.TimeSlot, error)
	ListTimeSlots(ctx context.Context, amenityID int64) ([]amenity.TimeSlot, error)
	GetTimeSlot(ctx context.Context, id int64) (amenity.TimeSlot, error)

	CreateReservation(ctx context.Context, r amenity.Reservation) (amenity.Reservation, error)
	UpdateReservation(ctx context.Context, r amenity.Reservation) (amenity.Reservation, error)
	GetReservation(ctx context.Context, id int64) (amenity.Reservation, error)
	ListReservationsByAmenity(ctx context.Context, amenityID int64) ([]amenity.Reservation, error)
	ListReservationsByUser(ctx context.Context, userID int64) ([]amenity.Reservation, error)
	ListReservationsOnDate(ctx context.Context, amenityID int64, date time.Time) ([]amenity.Reservation, error)
}

// ChatStore persists rooms, messages and conversation requests.
type ChatStore interface {
	CreateRoom(ctx context.Context, r chat.Room, participantIDs []int64) (chat.Room, error)
	GetRoom(ctx context.Context, id int64) (chat.Room, error)
	ListRoomsForUser(ctx context.Context, userID, buildingID int64) ([]chat.Room, error)
	ListParticipants(ctx context.Context, roomID int64) ([]chat.Participant, error)
	SetRoomHidden(ctx context.Context, roomID, userID int64, hidden bool) error
	FindDirectRoom(ctx context.Context, userA, userB, buildingID int64) (chat.Room, error)
	CreateMessage(ctx context.Context, m chat.Message) (chat.Message, error)
	// ListMessages returns up to limit most recent messages, oldest first.
	ListMessages(ctx context.Context, roomID int64, limit int) ([]chat.Message, error)

	CreateChatRequest(ctx context.Context, r chat.Request) (chat.Request, error)
	UpdateChatRequest(ctx context.Context, r chat.Request) (chat.Request, error)
	GetChatRequest(ctx context.Context, id int64) (chat.Request, error)
	ListPendingChatRequests(ctx context.Context, receiverID, buildingID int64) ([]chat.Request, error)
	// ChatRequestExists reports a pending or approved request between the
	// pair in either direction.
	ChatRequestExists(ctx context.Context, userA, userB, buildingID int64) (bool, error)
}

// ForumStore persists forum categories and threads.
type ForumStore interface {
	ListCategories(ctx context.Context) ([]forum.Category, error)
	GetCategoryByName(ctx context.Context, name string) (forum.Category, error)
	CreateThread(ctx context.Context, t forum.Thread) (forum.Thread, error)
	UpdateThread(ctx context.Context, t forum.Thread) (forum.Thread, error)
	GetThread(ctx context.Context, id int64) (forum.Thread, error)
	ListThreads(ctx context.Context, buildingID int64) ([]forum.Thread, error)
	DeleteThread(ctx context.Context, id int64) error
}

// StaffStore persists building staff.
type StaffStore interface {
	CreateStaff(ctx context.Context, m staff.Member) (staff.Member, error)
	UpdateStaff(ctx context.Context, m staff.Member) (staff.Member, error)
	GetStaff(ctx context.Context, id int64) (staff.Member, error)
	ListStaff(ctx context.Context, buildingID int64, activeOnly bool) ([]staff.Member, error)
	DeleteStaff(ctx context.Context, id int64) error
	FindStaffByRUT(ctx context.Context, rut string) (staff.Member, error)
	FindStaffByEmail(ctx context.Context, email string) (staff.Member, error)
	FindStaffByUser(ctx context.Context, userID int64) (staff.Member, error)
}

// TaskStore persists staff tasks and their assignees.
type TaskStore interface {
	CreateTask(ctx context.Context, t task.Task) (task.Task, error)
	UpdateTask(ctx context.Context, t task.Task) (task.Task, error)
	GetTask(ctx context.Context, id int64) (task.Task, error)
	ListTasks(ctx context.Context, buildingID int64) ([]task.Task, error)
	DeleteTask(ctx context.Context, id int64) error
}

// LibraryStore persists shared document metadata.
type LibraryStore interface {
	CreateDocument(ctx context.Context, d library.Document) (library.Document, error)
	GetDocument(ctx context.Context, id int64) (library.Document, error)
	ListDocuments(ctx context.Context, buildingID int64) ([]library.Document, error)
	DeleteDocument(ctx context.Context, id int64) error
}
