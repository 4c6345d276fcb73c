package polls

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/domu-platform/domu/internal/app/domain/poll"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/metrics"
	"github.com/domu-platform/domu/internal/app/storage"
	apperrors "github.com/domu-platform/domu/internal/errors"
	"github.com/domu-platform/domu/pkg/logger"
)

// Service manages building polls and their votes.
type Service struct {
	store storage.PollStore
	log   *logger.Logger
	now   func() time.Time
}

// New constructs a poll service.
func New(store storage.PollStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("polls")
	}
	return &Service{store: store, log: log, now: time.Now}
}

// CreateInput opens a poll.
type CreateInput struct {
	Title       string
	Description string
	ClosesAt    time.Time
	Options     []string
}

// OptionResult is an option with its tally.
type OptionResult struct {
	ID         int64   `json:"id"`
	Label      string  `json:"label"`
	Votes      int64   `json:"votes"`
	Percentage float64 `json:"percentage"`
}

// Result is a poll as seen by one user.
type Result struct {
	poll.Poll
	Options          []OptionResult `json:"options"`
	TotalVotes       int64          `json:"totalVotes"`
	HasVoted         bool           `json:"hasVoted"`
	SelectedOptionID *int64         `json:"selectedOptionId,omitempty"`
}

// Lists splits polls by status.
type Lists struct {
	Open   []Result `json:"open"`
	Closed []Result `json:"closed"`
}

// Create opens a poll in the selected building.
func (s *Service) Create(ctx context.Context, actor user.Actor, in CreateInput) (Result, error) {
	if !actor.User.IsManager() {
		return Result{}, apperrors.Forbidden("only building managers can create polls")
	}
	if !actor.HasBuilding() {
		return Result{}, apperrors.BuildingRequired()
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Result{}, apperrors.Validation("title is required")
	}
	if in.ClosesAt.IsZero() {
		return Result{}, apperrors.Validation("closesAt is required")
	}
	if !in.ClosesAt.After(s.now()) {
		return Result{}, apperrors.Validation("closesAt must be in the future")
	}
	options := make([]string, 0, len(in.Options))
	for _, opt := range in.Options {
		if trimmed := strings.TrimSpace(opt); trimmed != "" {
			options = append(options, trimmed)
		}
	}
	if len(options) < 2 {
		return Result{}, apperrors.Validation("at least two options are required")
	}

	p, opts, err := s.store.CreatePoll(ctx, poll.Poll{
		BuildingID:  actor.BuildingID,
		CreatedBy:   actor.ID(),
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		ClosesAt:    in.ClosesAt.UTC(),
		Status:      poll.StatusOpen,
	}, options)
	if err != nil {
		return Result{}, err
	}
	s.log.WithField("poll_id", p.ID).
		WithField("building_id", p.BuildingID).
		WithField("options", len(opts)).
		Info("poll created")
	return tally(p, opts, nil, actor.ID()), nil
}

// List returns the polls of the selected building. Expired polls are closed
// first.
func (s *Service) List(ctx context.Context, actor user.Actor, status string) (Lists, error) {
	if !actor.HasBuilding() {
		return Lists{}, apperrors.BuildingRequired()
	}
	if _, err := s.CloseExpired(ctx); err != nil {
		return Lists{}, err
	}
	polls, err := s.store.ListPolls(ctx, actor.BuildingID)
	if err != nil {
		return Lists{}, err
	}
	status = strings.ToUpper(strings.TrimSpace(status))
	out := Lists{Open: []Result{}, Closed: []Result{}}
	for _, p := range polls {
		if status != "" && p.Status != status {
			continue
		}
		r, err := s.result(ctx, p, actor.ID())
		if err != nil {
			return Lists{}, err
		}
		if p.Status == poll.StatusOpen {
			out.Open = append(out.Open, r)
		} else {
			out.Closed = append(out.Closed, r)
		}
	}
	newestFirst := func(list []Result) {
		sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	}
	newestFirst(out.Open)
	newestFirst(out.Closed)
	return out, nil
}

// Get returns one poll with its tally.
func (s *Service) Get(ctx context.Context, actor user.Actor, id int64) (Result, error) {
	p, err := s.load(ctx, actor, id)
	if err != nil {
		return Result{}, err
	}
	return s.result(ctx, p, actor.ID())
}

// Vote records the caller's single vote.
func (s *Service) Vote(ctx context.Context, actor user.Actor, id, optionID int64) (Result, error) {
	if optionID <= 0 {
		return Result{}, apperrors.Validation("optionId is required")
	}
	p, err := s.store.GetPoll(ctx, id)
	if err != nil {
		return Result{}, apperrors.FromStore(err, "poll not found")
	}
	if err := sameBuilding(actor, p); err != nil {
		return Result{}, err
	}
	if p.Status != poll.StatusOpen {
		return Result{}, apperrors.Validation("the poll is closed")
	}
	if p.Expired(s.now()) {
		if _, err := s.close(ctx, p); err != nil {
			return Result{}, err
		}
		return Result{}, apperrors.Validation("the poll has expired")
	}

	options, err := s.store.ListOptions(ctx, p.ID)
	if err != nil {
		return Result{}, err
	}
	valid := false
	for _, o := range options {
		if o.ID == optionID {
			valid = true
			break
		}
	}
	if !valid {
		return Result{}, apperrors.Validation("invalid option")
	}
	if _, err := s.store.CreateVote(ctx, poll.Vote{PollID: p.ID, OptionID: optionID, UserID: actor.ID()}); err != nil {
		return Result{}, err
	}
	metrics.RecordVote()
	s.log.WithField("poll_id", p.ID).WithField("user_id", actor.ID()).Info("vote recorded")
	return s.result(ctx, p, actor.ID())
}

// Close ends a poll immediately.
func (s *Service) Close(ctx context.Context, actor user.Actor, id int64) (Result, error) {
	if !actor.User.IsManager() {
		return Result{}, apperrors.Forbidden("only building managers can close polls")
	}
	p, err := s.store.GetPoll(ctx, id)
	if err != nil {
		return Result{}, apperrors.FromStore(err, "poll not found")
	}
	if err := sameBuilding(actor, p); err != nil {
		return Result{}, err
	}
	if p.Status == poll.StatusOpen {
		if p, err = s.close(ctx, p); err != nil {
			return Result{}, err
		}
	}
	return s.result(ctx, p, actor.ID())
}

// CloseExpired closes every open poll whose closing time has passed.
func (s *Service) CloseExpired(ctx context.Context) (int, error) {
	due, err := s.store.ListPollsDue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	for _, p := range due {
		if _, err := s.close(ctx, p); err != nil {
			return 0, err
		}
	}
	if len(due) > 0 {
		s.log.WithField("count", len(due)).Info("expired polls closed")
	}
	return len(due), nil
}

// ExportCSV renders the poll tally as CSV.
func (s *Service) ExportCSV(ctx context.Context, actor user.Actor, id int64) ([]byte, error) {
	if !actor.User.IsManager() {
		return nil, apperrors.Forbidden("only building managers can export polls")
	}
	p, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	r, err := s.result(ctx, p, actor.ID())
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("Pregunta,Estado,Cierra en,Total votos\n")
	b.WriteString(csvRow(r.Title, r.Status, r.ClosesAt.UTC().Format(time.RFC3339), strconv.FormatInt(r.TotalVotes, 10)))
	b.WriteString("\n")
	b.WriteString("Opción,Votos\n")
	for _, o := range r.Options {
		b.WriteString(csvRow(o.Label, strconv.FormatInt(o.Votes, 10)))
	}
	return []byte(b.String()), nil
}

func csvRow(values ...string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
	}
	return strings.Join(quoted, ",") + "\n"
}

// load fetches a poll of the caller's building, closing it when expired.
func (s *Service) load(ctx context.Context, actor user.Actor, id int64) (poll.Poll, error) {
	p, err := s.store.GetPoll(ctx, id)
	if err != nil {
		return poll.Poll{}, apperrors.FromStore(err, "poll not found")
	}
	if err := sameBuilding(actor, p); err != nil {
		return poll.Poll{}, err
	}
	if p.Expired(s.now()) {
		return s.close(ctx, p)
	}
	return p, nil
}

func (s *Service) close(ctx context.Context, p poll.Poll) (poll.Poll, error) {
	now := s.now().UTC()
	p.Status = poll.StatusClosed
	p.ClosedAt = &now
	updated, err := s.store.UpdatePoll(ctx, p)
	if err != nil {
		return poll.Poll{}, fmt.Errorf("close poll %d: %w", p.ID, err)
	}
	return updated, nil
}

func sameBuilding(actor user.Actor, p poll.Poll) error {
	if !actor.HasBuilding() {
		return apperrors.BuildingRequired()
	}
	if p.BuildingID != actor.BuildingID {
		return apperrors.Forbidden("you do not have access to this poll")
	}
	return nil
}

func (s *Service) result(ctx context.Context, p poll.Poll, userID int64) (Result, error) {
	options, err := s.store.ListOptions(ctx, p.ID)
	if err != nil {
		return Result{}, err
	}
	votes, err := s.store.ListVotes(ctx, p.ID)
	if err != nil {
		return Result{}, err
	}
	return tally(p, options, votes, userID), nil
}

func tally(p poll.Poll, options []poll.Option, votes []poll.Vote, userID int64) Result {
	counts := make(map[int64]int64, len(options))
	r := Result{Poll: p, Options: make([]OptionResult, 0, len(options))}
	for _, v := range votes {
		counts[v.OptionID]++
		r.TotalVotes++
		if v.UserID == userID {
			selected := v.OptionID
			r.HasVoted = true
			r.SelectedOptionID = &selected
		}
	}
	for _, o := range options {
		r.Options = append(r.Options, OptionResult{
			ID:         o.ID,
			Label:      o.Label,
			Votes:      counts[o.ID],
			Percentage: percentage(counts[o.ID], r.TotalVotes),
		})
	}
	return r
}

// percentage is votes/total as a percentage rounded to one decimal.
func percentage(votes, total int64) float64 {
	if total == 0 {
		return 0
	}
	return decimal.NewFromInt(votes * 100).
		Div(decimal.NewFromInt(total)).
		Round(1).
		InexactFloat64()
}
