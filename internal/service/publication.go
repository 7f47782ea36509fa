package service

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/insightloop/reportd/internal/model"
	"github.com/insightloop/reportd/internal/pkg/apperr"
	"github.com/insightloop/reportd/internal/pkg/secret"
	"github.com/insightloop/reportd/internal/repository"
)

const slugAttempts = 5

// uniform rejection so anonymous callers cannot tell a missing slug from a
// wrong password or a disabled publication
const accessDeniedMsg = "invalid link or password"

// Publisher issues and revokes published report artifacts and maintains the
// link graph between them. Writes are serialized per publication.
type Publisher struct {
	store *repository.Store

	mu       sync.Mutex
	pubLocks map[int64]*sync.Mutex
}

// NewPublisher creates the publication registry service
func NewPublisher(store *repository.Store) *Publisher {
	return &Publisher{
		store:    store,
		pubLocks: make(map[int64]*sync.Mutex),
	}
}

func (p *Publisher) pubLock(pubID int64) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.pubLocks[pubID]
	if !ok {
		lock = &sync.Mutex{}
		p.pubLocks[pubID] = lock
	}
	return lock
}

// Publish snapshots a report into a password-protected public artifact. Title
// and description fall back to the report's own when not supplied.
func (p *Publisher) Publish(userID, reportID int64, title, description string) (*model.PublishedReport, error) {
	report, err := p.store.GetUserReport(userID, reportID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, apperr.NotFoundf("report %d not found", reportID)
	}

	if strings.TrimSpace(title) == "" {
		title = report.Title
	}
	if strings.TrimSpace(description) == "" {
		description = report.Description
	}

	password, err := secret.Issue()
	if err != nil {
		return nil, err
	}

	pub := &model.PublishedReport{
		UserID:      userID,
		ReportID:    report.ID,
		Title:       title,
		Description: description,
		SourceTitle: report.Title,
		Password:    password,
		IsActive:    true,
	}

	var id int64
	for attempt := 0; attempt < slugAttempts; attempt++ {
		pub.Slug = makeSlug(title)
		id, err = p.store.CreatePublication(pub)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrSlugTaken) {
			return nil, err
		}
	}
	if err != nil {
		return nil, apperr.Conflictf("could not allocate a unique slug for %q", title)
	}

	zap.L().Info("Report published",
		zap.Int64("report_id", report.ID),
		zap.Int64("publication_id", id),
		zap.String("slug", pub.Slug))

	return p.store.GetPublication(id)
}

// RotatePassword issues a fresh secret, invalidating the previous one
// immediately
func (p *Publisher) RotatePassword(userID, pubID int64) (string, error) {
	lock := p.pubLock(pubID)
	lock.Lock()
	defer lock.Unlock()

	pub, err := p.getOwned(userID, pubID)
	if err != nil {
		return "", err
	}

	password, err := secret.Issue()
	if err != nil {
		return "", err
	}

	if err := p.store.UpdatePublicationPassword(pub.ID, password); err != nil {
		return "", err
	}

	zap.L().Info("Publication password rotated",
		zap.Int64("publication_id", pubID))

	return password, nil
}

// Get returns one of the user's publications
func (p *Publisher) Get(userID, pubID int64) (*model.PublishedReport, error) {
	return p.getOwned(userID, pubID)
}

// List returns one page of the user's publications, newest first
func (p *Publisher) List(userID int64, page, perPage int) ([]model.PublishedReport, error) {
	return p.store.ListPublications(userID, page, perPage)
}

// SetActive toggles the soft-disable flag
func (p *Publisher) SetActive(userID, pubID int64, active bool) (*model.PublishedReport, error) {
	lock := p.pubLock(pubID)
	lock.Lock()
	defer lock.Unlock()

	pub, err := p.getOwned(userID, pubID)
	if err != nil {
		return nil, err
	}
	if err := p.store.SetPublicationActive(pub.ID, active); err != nil {
		return nil, err
	}
	return p.store.GetPublication(pub.ID)
}

// Delete removes a publication along with every link it owns or is targeted by
func (p *Publisher) Delete(userID, pubID int64) error {
	lock := p.pubLock(pubID)
	lock.Lock()
	defer lock.Unlock()

	pub, err := p.getOwned(userID, pubID)
	if err != nil {
		return err
	}

	deleted, err := p.store.DeletePublication(pub.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return apperr.NotFoundf("publication %d not found", pubID)
	}

	zap.L().Info("Publication deleted",
		zap.Int64("publication_id", pubID))

	return nil
}

// AddLink creates a directed navigation link between two publications
func (p *Publisher) AddLink(userID, pubID, targetID int64, label string) (*model.PublishedReportLink, error) {
	if pubID == targetID {
		return nil, apperr.Validationf("a publication cannot link to itself")
	}

	lock := p.pubLock(pubID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := p.getOwned(userID, pubID); err != nil {
		return nil, err
	}
	if _, err := p.getOwned(userID, targetID); err != nil {
		return nil, apperr.NotFoundf("target publication %d not found", targetID)
	}

	sortOrder, err := p.store.NextLinkSortOrder(pubID)
	if err != nil {
		return nil, err
	}

	linkID, err := p.store.CreateLink(pubID, targetID, label, sortOrder)
	if err != nil {
		if errors.Is(err, repository.ErrLinkExists) {
			return nil, apperr.Conflictf("publication %d already links to %d", pubID, targetID)
		}
		return nil, err
	}

	return p.store.GetLink(pubID, linkID)
}

// RemoveLink deletes a link owned by the publication
func (p *Publisher) RemoveLink(userID, pubID, linkID int64) error {
	lock := p.pubLock(pubID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := p.getOwned(userID, pubID); err != nil {
		return err
	}

	deleted, err := p.store.DeleteLink(pubID, linkID)
	if err != nil {
		return err
	}
	if !deleted {
		return apperr.NotFoundf("link %d not found", linkID)
	}
	return nil
}

// ListLinks returns a publication's outbound links in sort order
func (p *Publisher) ListLinks(userID, pubID int64) ([]model.PublishedReportLink, error) {
	if _, err := p.getOwned(userID, pubID); err != nil {
		return nil, err
	}
	return p.store.ListLinks(pubID)
}

// VerifyAccess is the sole anonymous read path. It fails closed on disabled
// publications and never reveals whether the slug or the secret was wrong.
func (p *Publisher) VerifyAccess(slug, candidate string) (*model.PublishedReport, error) {
	pub, err := p.store.GetPublicationBySlug(slug)
	if err != nil {
		return nil, err
	}
	if pub == nil {
		// burn a comparison anyway so a missing slug costs the same
		secret.Verify(strings.Repeat("x", secret.Length), candidate)
		return nil, apperr.Authf(accessDeniedMsg)
	}
	if !secret.Verify(pub.Password, candidate) || !pub.IsActive {
		return nil, apperr.Authf(accessDeniedMsg)
	}
	return pub, nil
}

func (p *Publisher) getOwned(userID, pubID int64) (*model.PublishedReport, error) {
	pub, err := p.store.GetPublication(pubID)
	if err != nil {
		return nil, err
	}
	if pub == nil || pub.UserID != userID {
		return nil, apperr.NotFoundf("publication %d not found", pubID)
	}
	return pub, nil
}

// makeSlug derives a URL-safe slug from the title plus a random suffix
func makeSlug(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
		if b.Len() >= 40 {
			break
		}
	}

	base := strings.Trim(b.String(), "-")
	if base == "" {
		base = "report"
	}
	return base + "-" + uuid.NewString()[:8]
}
