package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
)

type readingKey struct {
	uid       string
	sessionID int64
}

// MemoryStore implements Store in process memory when the DB is disabled.
// Data does not survive a restart.
type MemoryStore struct {
	mu  sync.RWMutex
	now func() time.Time

	readings    []models.Reading
	readingKeys map[readingKey]struct{}

	sessions      map[int64]models.ExposureSession
	nextSessionID int64

	summaries map[string]models.CumulativeSummary

	alerts      []models.SafetyAlert
	nextAlertID int64

	employees map[string]models.Employee

	attendance       []models.AttendanceRecord
	nextAttendanceID int64
}

// NewMemoryStore creates an empty store. now stamps created_at columns and
// defaults to time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		now:         now,
		readingKeys: map[readingKey]struct{}{},
		sessions:    map[int64]models.ExposureSession{},
		summaries:   map[string]models.CumulativeSummary{},
		employees:   map[string]models.Employee{},
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Purge(_ context.Context, target PurgeTarget) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total int64
	for _, p := range purgeOrder {
		if target != PurgeAll && target != p.target {
			continue
		}
		switch p.target {
		case PurgeReadings:
			total += int64(len(m.readings))
			m.readings = nil
			m.readingKeys = map[readingKey]struct{}{}
		case PurgeAlerts:
			total += int64(len(m.alerts))
			m.alerts = nil
		case PurgeSummaries:
			total += int64(len(m.summaries))
			m.summaries = map[string]models.CumulativeSummary{}
		case PurgeAttendance:
			total += int64(len(m.attendance))
			m.attendance = nil
		case PurgeSessions:
			total += int64(len(m.sessions))
			m.sessions = map[int64]models.ExposureSession{}
			for i := range m.readings {
				m.readings[i].SessionID = nil
			}
		}
	}
	return total, nil
}

// --- readings ---

func (m *MemoryStore) SaveReading(_ context.Context, r models.Reading) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sessionIDs []int64
	for id, s := range m.sessions {
		if s.IsActive {
			sessionIDs = append(sessionIDs, id)
		}
	}
	sort.Slice(sessionIDs, func(i, j int) bool { return sessionIDs[i] < sessionIDs[j] })

	if len(sessionIDs) == 0 {
		m.insertReadingLocked(r, nil)
		return nil, nil
	}
	for _, id := range sessionIDs {
		m.insertReadingLocked(r, &id)
	}
	return sessionIDs, nil
}

func (m *MemoryStore) insertReadingLocked(r models.Reading, sessionID *int64) {
	key := readingKey{uid: r.ID}
	if sessionID != nil {
		key.sessionID = *sessionID
	}
	if _, dup := m.readingKeys[key]; dup {
		return
	}
	m.readingKeys[key] = struct{}{}
	r.SessionID = sessionID
	m.readings = append(m.readings, r)
}

func (m *MemoryStore) LatestReadings(_ context.Context, limit int) ([]models.Reading, error) {
	if limit <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := map[string]struct{}{}
	var distinct []models.Reading
	for _, r := range m.readings {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		r.SessionID = nil
		distinct = append(distinct, r)
	}
	sortReadings(distinct)
	if len(distinct) > limit {
		distinct = distinct[len(distinct)-limit:]
	}
	return distinct, nil
}

func (m *MemoryStore) SessionReadings(_ context.Context, sessionID int64) ([]models.Reading, error) {
	return m.filterReadings(func(r models.Reading) bool {
		return r.SessionID != nil && *r.SessionID == sessionID
	}), nil
}

func (m *MemoryStore) UnattributedReadings(_ context.Context, start, end time.Time) ([]models.Reading, error) {
	return m.filterReadings(func(r models.Reading) bool {
		return r.SessionID == nil && !r.Timestamp.Before(start) && !r.Timestamp.After(end)
	}), nil
}

func (m *MemoryStore) DoseRateStats(_ context.Context, start, end time.Time) (models.DoseRateStats, error) {
	var stats models.DoseRateStats
	var sum float64
	for _, r := range m.filterReadings(func(r models.Reading) bool {
		return !r.Timestamp.Before(start) && !r.Timestamp.After(end)
	}) {
		rate := r.AbsorbedDoseRate
		if stats.Count == 0 || rate > stats.Max {
			stats.Max = rate
		}
		if stats.Count == 0 || rate < stats.Min {
			stats.Min = rate
		}
		sum += rate
		stats.Count++
	}
	if stats.Count > 0 {
		stats.Avg = sum / float64(stats.Count)
	}
	return stats, nil
}

func (m *MemoryStore) CountEmployeeReadings(_ context.Context, employeeID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, r := range m.readings {
		if r.SessionID == nil {
			continue
		}
		if s, ok := m.sessions[*r.SessionID]; ok && s.EmployeeID == employeeID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) filterReadings(keep func(models.Reading) bool) []models.Reading {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Reading
	for _, r := range m.readings {
		if keep(r) {
			out = append(out, r)
		}
	}
	sortReadings(out)
	return out
}

func sortReadings(rs []models.Reading) {
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].Timestamp.Before(rs[j].Timestamp) })
}

// --- sessions ---

func (m *MemoryStore) ActiveSessions(_ context.Context, employeeID string) ([]models.ExposureSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.ExposureSession
	for _, s := range m.sessions {
		if s.IsActive && (employeeID == "" || s.EmployeeID == employeeID) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CheckInTime.Equal(out[j].CheckInTime) {
			return out[i].CheckInTime.After(out[j].CheckInTime)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) GetSession(_ context.Context, id int64) (*models.ExposureSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) CreateSession(_ context.Context, es *models.ExposureSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sessions {
		if s.IsActive && s.EmployeeID == es.EmployeeID {
			return ErrActiveSessionExists
		}
	}
	m.nextSessionID++
	es.ID = m.nextSessionID
	es.IsActive = true
	es.CreatedAt = m.now()
	m.sessions[es.ID] = *es
	return nil
}

func (m *MemoryStore) CompleteSession(_ context.Context, es *models.ExposureSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.sessions[es.ID]
	if !ok || !cur.IsActive {
		return ErrNotFound
	}
	cur.CheckOutTime = es.CheckOutTime
	cur.FinalTotalDose = es.FinalTotalDose
	cur.DurationMinutes = es.DurationMinutes
	cur.AverageDoseRate = es.AverageDoseRate
	cur.TotalExposure = es.TotalExposure
	cur.MaxDoseRate = es.MaxDoseRate
	cur.MinDoseRate = es.MinDoseRate
	cur.DailyTotalExposure = es.DailyTotalExposure
	cur.ExposureMethod = es.ExposureMethod
	cur.Notes = es.Notes
	cur.IsActive = false
	m.sessions[es.ID] = cur
	es.IsActive = false
	return nil
}

func (m *MemoryStore) AutoCloseSession(_ context.Context, id int64, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.sessions[id]
	if !ok || !cur.IsActive {
		return ErrNotFound
	}
	cur.IsActive = false
	cur.Notes = strings.TrimSpace(cur.Notes + " " + note)
	m.sessions[id] = cur
	return nil
}

func (m *MemoryStore) EmployeeSessions(_ context.Context, employeeID string) ([]models.ExposureSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.ExposureSession
	for _, s := range m.sessions {
		if s.EmployeeID == employeeID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.SessionDate.Equal(b.SessionDate) {
			return a.SessionDate.Before(b.SessionDate)
		}
		if !a.CheckInTime.Equal(b.CheckInTime) {
			return a.CheckInTime.Before(b.CheckInTime)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (m *MemoryStore) SessionReports(_ context.Context, filter models.SessionReportFilter) ([]models.SessionReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var from, to string
	if !filter.From.IsZero() {
		from = filter.From.Format(dateLayout)
	}
	if !filter.To.IsZero() {
		to = filter.To.Format(dateLayout)
	}

	var out []models.SessionReport
	for _, s := range m.sessions {
		if filter.EmployeeID != "" && s.EmployeeID != filter.EmployeeID {
			continue
		}
		day := s.SessionDate.Format(dateLayout)
		if (from != "" && day < from) || (to != "" && day > to) {
			continue
		}
		out = append(out, models.SessionReport{
			ExposureSession: s,
			EmployeeName:    m.employees[s.EmployeeID].Name,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CheckInTime.Equal(b.CheckInTime) {
			return a.CheckInTime.After(b.CheckInTime)
		}
		return a.ID > b.ID
	})
	return out, nil
}

func (m *MemoryStore) EmployeesWithSessions(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := map[string]struct{}{}
	for _, s := range m.sessions {
		set[s.EmployeeID] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) HasRecentActivity(_ context.Context, employeeID string, since time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.sessions {
		if s.EmployeeID == employeeID && (s.IsActive || !s.CreatedAt.Before(since)) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) DailyExposure(_ context.Context, employeeID string, date time.Time) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	day := date.Format(dateLayout)
	var total float64
	for _, s := range m.sessions {
		if s.EmployeeID == employeeID && s.SessionDate.Format(dateLayout) == day && s.DailyTotalExposure != nil {
			total += *s.DailyTotalExposure
		}
	}
	return total, nil
}

func (m *MemoryStore) CumulativeExposure(_ context.Context, employeeID string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total float64
	for _, s := range m.sessions {
		if s.EmployeeID == employeeID && s.Completed() {
			total += *s.TotalExposure
		}
	}
	return total, nil
}

// --- summaries ---

func (m *MemoryStore) GetSummary(_ context.Context, employeeID string) (*models.CumulativeSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cs, ok := m.summaries[employeeID]
	if !ok {
		return nil, ErrNotFound
	}
	return &cs, nil
}

func (m *MemoryStore) UpsertSummary(_ context.Context, cs *models.CumulativeSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[cs.EmployeeID] = *cs
	return nil
}

func (m *MemoryStore) ListSummaries(context.Context) ([]models.CumulativeSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.CumulativeSummary, 0, len(m.summaries))
	for _, cs := range m.summaries {
		out = append(out, cs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}

// --- alerts ---

func (m *MemoryStore) CreateAlert(_ context.Context, a *models.SafetyAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextAlertID++
	a.ID = m.nextAlertID
	a.Acknowledged = false
	m.alerts = append(m.alerts, *a)
	return nil
}

func (m *MemoryStore) RecentAlertExists(_ context.Context, employeeID, alertType string, since time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, a := range m.alerts {
		if a.EmployeeID == employeeID && a.AlertType == alertType && a.Timestamp.After(since) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) ListAlerts(_ context.Context, filter models.AlertFilter) ([]models.SafetyAlert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.SafetyAlert
	for _, a := range m.alerts {
		if filter.EmployeeID != "" && a.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.UnreadOnly && a.Acknowledged {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	if limit := ClampAlertLimit(filter.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) UnreadCount(_ context.Context, employeeID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, a := range m.alerts {
		if !a.Acknowledged && (employeeID == "" || a.EmployeeID == employeeID) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) AcknowledgeAlert(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.alerts {
		if m.alerts[i].ID == id {
			m.alerts[i].Acknowledged = true
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) AcknowledgeAll(_ context.Context, employeeID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for i := range m.alerts {
		a := &m.alerts[i]
		if !a.Acknowledged && (employeeID == "" || a.EmployeeID == employeeID) {
			a.Acknowledged = true
			n++
		}
	}
	return n, nil
}

// --- employees & attendance ---

func (m *MemoryStore) GetEmployee(_ context.Context, employeeID string) (*models.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.employees[employeeID]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (m *MemoryStore) UpsertEmployee(_ context.Context, e *models.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[e.EmployeeID] = *e
	return nil
}

func (m *MemoryStore) RecordAttendance(_ context.Context, rec *models.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextAttendanceID++
	rec.ID = m.nextAttendanceID
	m.attendance = append(m.attendance, *rec)
	return nil
}

func (m *MemoryStore) LastAttendance(_ context.Context, employeeID string, since time.Time) (*models.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var last *models.AttendanceRecord
	for i := range m.attendance {
		rec := m.attendance[i]
		if rec.EmployeeID != employeeID || rec.Timestamp.Before(since) {
			continue
		}
		if last == nil || !rec.Timestamp.Before(last.Timestamp) {
			r := rec
			last = &r
		}
	}
	if last == nil {
		return nil, ErrNotFound
	}
	return last, nil
}
