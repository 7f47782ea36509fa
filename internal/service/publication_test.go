package service

import (
	"strings"
	"sync"
	"testing"

	"github.com/insightloop/reportd/internal/model"
	"github.com/insightloop/reportd/internal/pkg/apperr"
	"github.com/insightloop/reportd/internal/repository"
)

func newPublisherFixture(t *testing.T) (*Publisher, *repository.Store, int64, *model.Report) {
	t.Helper()
	store := newTestStore(t)
	userID := newTestUser(t, store)
	l := newLifecycle(t, store, &fakeExecutor{})

	report, err := l.Create(userID, validDefinition())
	if err != nil {
		t.Fatalf("create report: %v", err)
	}
	return NewPublisher(store), store, userID, report
}

func TestPublishSnapshotsTitleAndIssuesSecret(t *testing.T) {
	p, _, userID, report := newPublisherFixture(t)

	pub, err := p.Publish(userID, report.ID, "", "")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if pub.Title != "Sales Q1" || pub.SourceTitle != "Sales Q1" {
		t.Fatalf("title fallback broken: %+v", pub)
	}
	if pub.Slug == "" || !strings.HasPrefix(pub.Slug, "sales-q1-") {
		t.Fatalf("unexpected slug %q", pub.Slug)
	}
	if !pub.IsActive {
		t.Fatalf("new publication must be active")
	}

	second, err := p.Publish(userID, report.ID, "Shared view", "")
	if err != nil {
		t.Fatalf("second publish: %v", err)
	}
	if second.Title != "Shared view" {
		t.Fatalf("explicit title ignored: %q", second.Title)
	}
	if second.Slug == pub.Slug {
		t.Fatalf("slug collision: %q", second.Slug)
	}
	if second.Password == pub.Password {
		t.Fatalf("two artifacts share a secret")
	}

	if _, err := p.Publish(userID, report.ID+999, "", ""); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConcurrentPublishesGetUniqueSlugs(t *testing.T) {
	p, _, userID, report := newPublisherFixture(t)

	var wg sync.WaitGroup
	slugs := make(chan string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pub, err := p.Publish(userID, report.ID, "", "")
			if err == nil {
				slugs <- pub.Slug
			}
		}()
	}
	wg.Wait()
	close(slugs)

	seen := make(map[string]bool)
	for slug := range slugs {
		if seen[slug] {
			t.Fatalf("duplicate slug %q", slug)
		}
		seen[slug] = true
	}
	if len(seen) != 8 {
		t.Fatalf("expected 8 publications, got %d", len(seen))
	}
}

func TestVerifyAccess(t *testing.T) {
	p, _, userID, report := newPublisherFixture(t)

	pub, err := p.Publish(userID, report.ID, "", "")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	got, err := p.VerifyAccess(pub.Slug, pub.Password)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.ID != pub.ID {
		t.Fatalf("wrong publication returned")
	}

	// wrong secret, missing slug and disabled artifact all fail identically
	_, errWrong := p.VerifyAccess(pub.Slug, "wrong-password")
	_, errMissing := p.VerifyAccess("no-such-slug", pub.Password)
	if !apperr.Is(errWrong, apperr.KindAuth) || !apperr.Is(errMissing, apperr.KindAuth) {
		t.Fatalf("expected auth errors, got %v / %v", errWrong, errMissing)
	}
	if errWrong.Error() != errMissing.Error() {
		t.Fatalf("rejection leaks slug existence: %q vs %q", errWrong.Error(), errMissing.Error())
	}

	if _, err := p.SetActive(userID, pub.ID, false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if _, err := p.VerifyAccess(pub.Slug, pub.Password); !apperr.Is(err, apperr.KindAuth) {
		t.Fatalf("disabled artifact must fail closed, got %v", err)
	}
}

func TestRotatePasswordInvalidatesOldSecret(t *testing.T) {
	p, _, userID, report := newPublisherFixture(t)

	pub, _ := p.Publish(userID, report.ID, "", "")
	old := pub.Password

	fresh, err := p.RotatePassword(userID, pub.ID)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if fresh == old {
		t.Fatalf("rotation returned the old secret")
	}

	if _, err := p.VerifyAccess(pub.Slug, old); !apperr.Is(err, apperr.KindAuth) {
		t.Fatalf("old secret still valid after rotation")
	}
	if _, err := p.VerifyAccess(pub.Slug, fresh); err != nil {
		t.Fatalf("new secret rejected: %v", err)
	}
}

func TestLinkGraph(t *testing.T) {
	p, _, userID, report := newPublisherFixture(t)

	a, _ := p.Publish(userID, report.ID, "A", "")
	b, _ := p.Publish(userID, report.ID, "B", "")
	c, _ := p.Publish(userID, report.ID, "C", "")

	if _, err := p.AddLink(userID, a.ID, a.ID, ""); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("self-link: expected validation error, got %v", err)
	}

	first, err := p.AddLink(userID, a.ID, b.ID, "Quarterly")
	if err != nil {
		t.Fatalf("add link: %v", err)
	}
	if _, err := p.AddLink(userID, a.ID, b.ID, ""); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("duplicate link: expected conflict, got %v", err)
	}
	// the reverse edge is permitted: the graph is navigation, not a DAG
	if _, err := p.AddLink(userID, b.ID, a.ID, ""); err != nil {
		t.Fatalf("reverse link: %v", err)
	}
	if _, err := p.AddLink(userID, a.ID, b.ID+999, ""); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("missing target: expected not found, got %v", err)
	}

	second, err := p.AddLink(userID, a.ID, c.ID, "Annual")
	if err != nil {
		t.Fatalf("second link: %v", err)
	}
	if second.SortOrder <= first.SortOrder {
		t.Fatalf("sort order not increasing: %d then %d", first.SortOrder, second.SortOrder)
	}

	links, err := p.ListLinks(userID, a.ID)
	if err != nil {
		t.Fatalf("list links: %v", err)
	}
	if len(links) != 2 || links[0].ID != first.ID || links[1].ID != second.ID {
		t.Fatalf("unexpected link order: %+v", links)
	}

	if err := p.RemoveLink(userID, a.ID, first.ID); err != nil {
		t.Fatalf("remove link: %v", err)
	}
	if err := p.RemoveLink(userID, a.ID, first.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	// deleting a publication removes links where it is owner or target
	if err := p.Delete(userID, b.ID); err != nil {
		t.Fatalf("delete publication: %v", err)
	}
	links, _ = p.ListLinks(userID, a.ID)
	for _, l := range links {
		if l.TargetID == b.ID {
			t.Fatalf("dangling link to deleted publication: %+v", l)
		}
	}
}
