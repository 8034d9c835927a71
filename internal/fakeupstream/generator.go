package fakeupstream

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"slices"
	"time"

	"github.com/okian/auditdeck/internal/domain/model"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Sample features reviewed by the compliance agent.
var sampleFeatures = []struct{ name, description string }{
	{"Curfew login blocker with ASL and GH for Utah minors", "Curfew-based login restriction for users under 18, enforced through GH within Utah only."},
	{"PF default toggle with NR enforcement for California teens", "Disables PF by default for California users under 18 unless a parent opts in."},
	{"Child abuse content scanner using T5 and CDS triggers", "Scans uploads, tags suspected material as T5 and routes reports through CDS."},
	{"Content visibility lock with NSP for EU DSA", "Applies Softblock to NSP-labelled content, restricted to the EU region by GH."},
	{"Jellybean-based parental notifications for Florida regulation", "Notifies verified parents when a minor reaches a restricted feature."},
	{"Unified retention control via DRT & CDS", "Automatic log deletion on DRT thresholds with CDS auditing violations."},
	{"NSP auto-flagging", "Detects and tags content that violates NSP policy and raises a Redline alert on sharing."},
	{"T5 tagging for sensitive reports", "Tags high-risk user reports as T5 for internal routing and CDS escalation."},
	{"Underage protection via Snowcap trigger", "Activates Snowcap for underage users platform-wide, segmented by ASL."},
	{"Universal PF deactivation on guest mode", "PF is turned off for everyone browsing in guest mode."},
	{"Story resharing with content expiry", "Reshared stories expire after 48 hours; attempts are logged with EchoTrace."},
	{"Leaderboard system for weekly creators", "Weekly creator leaderboard stored in FR metadata and tracked with IMT."},
	{"Mood-based PF enhancements", "Tunes PF recommendations from emoji mood signals, tested in ShadowMode."},
}

var sampleTags = []string{"minors", "geo", "privacy", "retention", "content-safety", "parental-controls", "eu", "us-state"}

var sampleSources = []struct {
	url  string
	tags []string
}{
	{"https://le.utah.gov/~2023/bills/static/SB0152.html", []string{"us-state", "minors"}},
	{"https://leginfo.legislature.ca.gov/faces/billNavClient.xhtml?bill_id=202320240SB976", []string{"us-state", "minors"}},
	{"https://www.law.cornell.edu/uscode/text/18/2258A", []string{"content-safety"}},
	{"https://eur-lex.europa.eu/eli/reg/2022/2065/oj", []string{"eu", "content-safety"}},
	{"https://www.flsenate.gov/Session/Bill/2024/3", []string{"us-state", "parental-controls"}},
	{"https://gdpr-info.eu/art-5-gdpr/", nil},
}

var sampleReasons = []string{
	"Source requires age assurance for the affected region.",
	"Regulation mandates default-off personalization for minors.",
	"No geographic restriction found; obligation applies globally.",
	"Retention window exceeds the statutory maximum.",
	"Feature does not touch any regulated surface.",
}

// randomInt returns a value in [0, n) using crypto/rand.
func randomInt(n int) int {
	if n <= 0 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

func pick[T any](items []T) T { return items[randomInt(len(items))] }

// Seed replaces the collections with the sample features and sources and
// the given number of pending reports. It does not broadcast.
func (s *Server) Seed(reports int) (features, sources int) {
	now := s.now()

	fs := make([]model.Feature, 0, len(sampleFeatures))
	for i, sf := range sampleFeatures {
		fs = append(fs, model.Feature{
			ID:          fmt.Sprintf("feature-%02d", i+1),
			Name:        sf.name,
			Description: sf.description,
			Tags:        []string{pick(sampleTags), pick(sampleTags)},
			Status:      pick(model.FeatureStatuses),
			CreatedAt:   model.NewTimestamp(now.Add(-time.Duration(len(sampleFeatures)-i) * time.Hour)),
		})
	}

	ss := make([]model.Source, 0, len(sampleSources))
	for i, src := range sampleSources {
		ss = append(ss, model.Source{
			ID:        fmt.Sprintf("source-%02d", i+1),
			SourceURL: src.url,
			Tags:      src.tags,
			CreatedAt: model.NewTimestamp(now.Add(-time.Duration(len(sampleSources)-i) * time.Hour)),
		})
	}

	rs := make([]model.AuditReport, 0, reports)
	for i := range reports {
		rs = append(rs, sampleReport(fmt.Sprintf("report-%03d", i+1), pick(fs), ss,
			model.NewTimestamp(now.Add(-time.Duration(reports-i)*time.Minute))))
	}

	// newest first
	slices.Reverse(fs)
	slices.Reverse(ss)
	slices.Reverse(rs)

	s.mu.Lock()
	s.features, s.sources, s.reports = fs, ss, rs
	s.mu.Unlock()
	return len(fs), len(ss)
}

func sampleReport(id string, f model.Feature, sources []model.Source, at model.Timestamp) model.AuditReport {
	to := pick(model.FeatureStatuses[1:])
	n := 0
	if len(sources) > 0 {
		n = 1 + randomInt(len(sources))
	}
	ids := make([]string, 0, n)
	for _, src := range sources[:n] {
		ids = append(ids, src.ID)
	}
	r := model.AuditReport{
		ID:             id,
		FeatureID:      f.ID,
		SourceIDs:      ids,
		OriginalStatus: f.Status,
		StatusChangeTo: to,
		Reason:         pick(sampleReasons),
		Confidence:     float64(50+randomInt(50)) / 100,
		Status:         model.ReportPending,
		CreatedAt:      at,
	}
	r.NeedsAction = r.ChangesStatus()
	return r
}
