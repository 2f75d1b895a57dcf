package wipe

import (
	"crypto/rand"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20"

	"datasanitizer/internal/config"
	"datasanitizer/internal/reason"
	"datasanitizer/internal/security"
	"datasanitizer/internal/system"
)

// State состояние задания
type State string

const (
	StateCreated         State = "Created"
	StateSafetyConfirmed State = "SafetyConfirmed"
	StateInProgress      State = "InProgress"
	StateVerifying       State = "Verifying"
	StateSucceeded       State = "Succeeded"
	StateFailed          State = "Failed"
)

// Terminal true для Succeeded и Failed
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

const alignment = 512

// Job - задание на многопроходную перезапись диапазона [0, BoundBytes) одного тома
type Job struct {
	ID               string
	TargetIdentifier string
	BoundBytes       uint64
	PassPatterns     []Pattern
	ChunkSize        int64
	CreatedAt        time.Time
	// Related - родительский диск и разделы цели, занятые на время задания
	Related []string

	mu          sync.Mutex
	state       State
	passIndex   int
	cause       reason.Code
	confirmedAt time.Time
	confirmed   jobTerms
}

// jobTerms - параметры задания, на которые выдан Safe вердикт
type jobTerms struct {
	target    string
	bound     uint64
	chunkSize int64
	patterns  []Pattern
	related   []string
}

func (j *Job) terms() jobTerms {
	return jobTerms{
		target:    system.NormalizeIdentifier(j.TargetIdentifier),
		bound:     j.BoundBytes,
		chunkSize: j.ChunkSize,
		patterns:  slices.Clone(j.PassPatterns),
		related:   slices.Clone(j.Related),
	}
}

func (t jobTerms) equal(o jobTerms) bool {
	return t.target == o.target &&
		t.bound == o.bound &&
		t.chunkSize == o.chunkSize &&
		slices.Equal(t.patterns, o.patterns) &&
		slices.Equal(t.related, o.related)
}

// NewJob создаёт задание в состоянии Created; random-проходы получают ключ задания
func NewJob(target string, boundBytes uint64, patterns []Pattern, chunkSize int64) (*Job, error) {
	if !system.IsDeviceIdentifier(target) {
		return nil, reason.New(reason.UnresolvedIdentifier, "identifier %q does not name a device", target)
	}
	if err := config.ValidateBound(boundBytes, config.MaxBoundLimit); err != nil {
		return nil, reason.Wrap(err, reason.InvalidRequest, "bound")
	}
	if chunkSize <= 0 || chunkSize%alignment != 0 {
		return nil, reason.New(reason.InvalidRequest, "chunk size %d must be a positive multiple of %d", chunkSize, alignment)
	}
	if len(patterns) == 0 || len(patterns) > config.MaxPasses {
		return nil, reason.New(reason.InvalidRequest, "pass count %d must be between 1 and %d", len(patterns), config.MaxPasses)
	}

	var key [chacha20.KeySize]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, reason.Wrap(err, reason.Internal, "generate pattern key")
	}
	keyed := make([]Pattern, len(patterns))
	for i, p := range patterns {
		keyed[i] = p.keyed(key, i)
	}

	return &Job{
		ID:               uuid.NewString(),
		TargetIdentifier: target,
		BoundBytes:       boundBytes,
		PassPatterns:     keyed,
		ChunkSize:        chunkSize,
		CreatedAt:        time.Now(),
		state:            StateCreated,
	}, nil
}

// PassCount число проходов
func (j *Job) PassCount() int { return len(j.PassPatterns) }

// PatternNames имена паттернов по проходам
func (j *Job) PatternNames() []string {
	out := make([]string, len(j.PassPatterns))
	for i, p := range j.PassPatterns {
		out[i] = p.Name()
	}
	return out
}

// State текущее состояние
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// PassIndex индекс текущего прохода (с 0), осмыслен в InProgress
func (j *Job) PassIndex() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.passIndex
}

// Cause причина отказа для Failed
func (j *Job) Cause() reason.Code {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cause
}

// ConfirmedAt момент проверки вердикта, принятого ConfirmSafety
func (j *Job) ConfirmedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.confirmedAt
}

// ConfirmSafety - единственный переход в SafetyConfirmed.
// Нужен Safe вердикт для того же идентификатора, полученный не раньше создания задания.
func (j *Job) ConfirmSafety(v security.Verdict) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.state != StateCreated {
		return reason.New(reason.PreconditionFailed, "job %s is %s, safety can only be confirmed once", j.ID, j.state)
	}
	if !v.IsSafe() {
		return v.Err()
	}
	if system.NormalizeIdentifier(v.Identifier) != system.NormalizeIdentifier(j.TargetIdentifier) {
		return reason.New(reason.SafetyNotConfirmed, "verdict for %s does not cover target %s", v.Identifier, j.TargetIdentifier)
	}
	if v.CheckedAt.Before(j.CreatedAt) {
		return reason.New(reason.SafetyNotConfirmed, "verdict for %s predates the job", v.Identifier)
	}
	j.state = StateSafetyConfirmed
	j.confirmedAt = v.CheckedAt
	j.confirmed = j.terms()
	return nil
}

// ready проверяет, что задание можно запускать: подтверждено, вердикт свежий,
// цель, диапазон и паттерны не менялись после ConfirmSafety. Состояние не меняет.
func (j *Job) ready(now time.Time, maxAge time.Duration) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.readyLocked(now, maxAge)
}

func (j *Job) readyLocked(now time.Time, maxAge time.Duration) error {
	if j.state != StateSafetyConfirmed {
		return reason.New(reason.PreconditionFailed, "job %s is %s, expected %s", j.ID, j.state, StateSafetyConfirmed)
	}
	if age := now.Sub(j.confirmedAt); age > maxAge {
		return reason.New(reason.SafetyNotConfirmed, "safety verdict is %s old, limit %s", age.Round(time.Millisecond), maxAge)
	}
	if !j.terms().equal(j.confirmed) {
		return reason.New(reason.SafetyNotConfirmed, "job %s was modified after safety confirmation of %s", j.ID, j.confirmed.target)
	}
	return nil
}

// begin атомарно повторяет проверки ready и переводит задание в InProgress
func (j *Job) begin(now time.Time, maxAge time.Duration) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.readyLocked(now, maxAge); err != nil {
		return err
	}
	j.state = StateInProgress
	j.passIndex = 0
	return nil
}

func (j *Job) advance(pass int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state == StateInProgress {
		j.passIndex = pass
	}
}

func (j *Job) verifying() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state == StateInProgress {
		j.state = StateVerifying
	}
}

func (j *Job) succeed() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state == StateVerifying {
		j.state = StateSucceeded
	}
}

// fail переводит задание в Failed; терминальные состояния не меняются
func (j *Job) fail(code reason.Code) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.state = StateFailed
	j.cause = code
}
