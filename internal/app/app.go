package app

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"datasanitizer/internal/config"
	"datasanitizer/internal/logging"
	"datasanitizer/internal/reason"
	"datasanitizer/internal/security"
	"datasanitizer/internal/system"
	"datasanitizer/internal/wipe"
)

// Dependencies - платформенные реализации, подменяемые в тестах
type Dependencies struct {
	Enumerator system.Enumerator
	Host       system.HostProbe
	Opener     wipe.Opener
	Watcher    system.Watcher
	Locks      *wipe.LockRegistry
	Metrics    Metrics
}

// Metrics получает события заданий и классификаций
type Metrics interface {
	wipe.Recorder
	RecordVerdict(v security.Verdict)
}

// App - командная поверхность для CLI и фронтенда
type App struct {
	logger     *logging.EnterpriseLogger
	config     *config.Config
	enumerator system.Enumerator
	host       system.HostProbe
	watcher    system.Watcher
	locks      *wipe.LockRegistry
	scheduler  *wipe.Scheduler
	metrics    Metrics
	now        func() time.Time
}

// NewApp собирает App с реализациями текущей платформы; metrics может быть nil
func NewApp(cfg *config.Config, logger *logging.EnterpriseLogger, metrics Metrics) *App {
	var watcher system.Watcher = system.NopWatcher{}
	if cfg.Sanitize.WatchHotplug {
		watcher = system.NewWatcher(logger)
	}
	return NewAppWithDependencies(cfg, logger, Dependencies{
		Enumerator: system.NewEnumerator(system.Options{ProtectedMounts: cfg.Security.ProtectedMounts}),
		Host:       system.NewHostProbe(),
		Opener:     wipe.NewOpener(),
		Watcher:    watcher,
		Locks:      wipe.NewLockRegistry(cfg.Sanitize.LockDir),
		Metrics:    metrics,
	})
}

// NewAppWithDependencies creates a new App instance with provided dependencies
func NewAppWithDependencies(cfg *config.Config, logger *logging.EnterpriseLogger, deps Dependencies) *App {
	if cfg == nil {
		cfg = config.Default()
	}
	if deps.Watcher == nil {
		deps.Watcher = system.NopWatcher{}
	}
	if deps.Locks == nil {
		deps.Locks = wipe.NewLockRegistry(cfg.Sanitize.LockDir)
	}

	scheduler := wipe.NewScheduler(deps.Opener, deps.Locks, wipe.OptionsFromConfig(cfg), logger)
	if deps.Metrics != nil {
		scheduler.SetRecorder(deps.Metrics)
	}

	return &App{
		logger:     logger.Named("app"),
		config:     cfg,
		enumerator: deps.Enumerator,
		host:       deps.Host,
		watcher:    deps.Watcher,
		locks:      deps.Locks,
		scheduler:  scheduler,
		metrics:    deps.Metrics,
		now:        time.Now,
	}
}

// Config активная конфигурация
func (a *App) Config() *config.Config { return a.config }

// EnumerateVolumes возвращает тома хоста. Только чтение.
func (a *App) EnumerateVolumes(ctx context.Context) ([]system.Volume, error) {
	volumes, err := a.enumerator.Enumerate(ctx)
	if err != nil {
		if !reason.Is(err, reason.EnumerationError) {
			err = reason.Wrap(err, reason.EnumerationError, "enumerate volumes")
		}
		a.logger.Log("ERROR", "volume enumeration failed", "error", err)
		return nil, reason.WithHint(err, "the host storage query failed; retry the request")
	}
	a.logger.Log("DEBUG", "volumes enumerated", "count", len(volumes))
	return volumes, nil
}

// ClassifyVolume классифицирует том по свежему перечислению и пробе загрузочного тома
func (a *App) ClassifyVolume(ctx context.Context, identifier string) (security.Verdict, error) {
	verdict, _, err := a.classify(ctx, identifier)
	if err != nil {
		return security.Verdict{}, err
	}
	return verdict, nil
}

func (a *App) classify(ctx context.Context, identifier string) (security.Verdict, []system.Volume, error) {
	volumes, err := a.EnumerateVolumes(ctx)
	if err != nil {
		return security.Verdict{}, nil, err
	}
	boot, probeErr := a.host.BootIdentifiers(ctx)
	if probeErr != nil {
		a.logger.Log("WARN", "boot volume probe failed, treating every volume as system", "error", probeErr)
	}

	verdict := security.ClassifyIdentifier(identifier, volumes, security.HostContext{
		BootIdentifiers: boot,
		ProbeErr:        probeErr,
		Busy:            security.BusySet(a.locks.Active(), volumes),
		Excluded:        a.config.Security.ExcludedDrives,
		RemovableOnly:   a.config.Security.RemovableOnly,
		Now:             a.now,
	})
	if a.metrics != nil {
		a.metrics.RecordVerdict(verdict)
	}
	a.logger.Log("INFO", "volume classified", "volume", identifier,
		"decision", string(verdict.Decision), "reason", string(verdict.Reason), "detail", verdict.Detail)
	return verdict, volumes, nil
}

// SanitizeRequest - запрос на санитизацию тома
type SanitizeRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	// Confirm должен быть явно true
	Confirm    bool     `json:"confirm"`
	BoundBytes uint64   `json:"boundBytes,omitempty" validate:"omitempty,min=512"`
	PassCount  int      `json:"passCount,omitempty" validate:"omitempty,min=1,max=35"`
	Profile    string   `json:"profile,omitempty" validate:"omitempty,oneof=quick standard dod5220 random paranoid"`
	Patterns   []string `json:"patterns,omitempty" validate:"omitempty,max=35,dive,required"`
	ChunkSize  int64    `json:"chunkSize,omitempty" validate:"omitempty,min=512"`
}

// Handle - выполняющееся задание
type Handle struct {
	job      *wipe.Job
	progress chan wipe.ProgressInfo
	cancel   context.CancelCauseFunc
	done     chan struct{}

	result wipe.Result
	err    error
}

// Job задание, выполняемое планировщиком
func (h *Handle) Job() *wipe.Job { return h.job }

// Progress события прогресса; канал закрывается по завершении задания
func (h *Handle) Progress() <-chan wipe.ProgressInfo { return h.progress }

// Cancel просит остановить задание на границе чанка
func (h *Handle) Cancel() {
	h.cancel(reason.New(reason.Cancelled, "cancelled by request"))
}

// Done закрывается по завершении задания
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait ждёт завершения задания
func (h *Handle) Wait() (wipe.Result, error) {
	<-h.done
	return h.result, h.err
}

// RunSanitization выполняет задание и ждёт результата
func (a *App) RunSanitization(ctx context.Context, req SanitizeRequest) (wipe.Result, error) {
	h, err := a.StartSanitization(ctx, req)
	if err != nil {
		return wipe.Result{}, err
	}
	// прогресс без потребителя отбрасывается планировщиком
	return h.Wait()
}

// StartSanitization проверяет запрос, заново классифицирует том и запускает задание в горутине.
// Без Confirm возвращает ConfirmationRequired без обращения к устройствам.
func (a *App) StartSanitization(ctx context.Context, req SanitizeRequest) (*Handle, error) {
	if !req.Confirm {
		return nil, reason.WithHint(
			reason.New(reason.ConfirmationRequired, "sanitization of %q was not confirmed", req.Identifier),
			"pass --yes or type the identifier at the prompt",
		)
	}
	req.Identifier = strings.TrimSpace(req.Identifier)
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	identifier := req.Identifier
	if a.locks.Busy(identifier) {
		return nil, reason.New(reason.AlreadyInProgress, "a job is already running on %s", identifier)
	}

	patterns, err := a.resolvePatterns(req)
	if err != nil {
		return nil, err
	}
	bound := req.BoundBytes
	if bound == 0 {
		bound = a.config.Sanitize.BoundBytes
	}
	if err := config.ValidateBound(bound, a.config.Sanitize.MaxBoundBytes); err != nil {
		return nil, reason.Wrap(err, reason.InvalidRequest, "bound")
	}
	chunk := req.ChunkSize
	if chunk == 0 {
		chunk = a.config.Sanitize.ChunkSize
	}

	job, err := wipe.NewJob(identifier, bound, patterns, chunk)
	if err != nil {
		return nil, err
	}

	// повторная классификация непосредственно перед запуском
	verdict, volumes, err := a.classify(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if !verdict.IsSafe() {
		// том мог занять параллельный запрос после предварительной проверки
		if a.locks.Busy(identifier) {
			return nil, reason.New(reason.AlreadyInProgress, "a job is already running on %s", identifier)
		}
		return nil, verdict.Err()
	}
	job.Related = relatedVolumes(identifier, volumes)
	if err := job.ConfirmSafety(verdict); err != nil {
		return nil, err
	}

	jobCtx, cancel := context.WithCancelCause(ctx)
	h := &Handle{
		job:      job,
		progress: make(chan wipe.ProgressInfo, 64),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	a.watch(jobCtx, cancel, identifier, job.Related)

	a.logger.Log("INFO", "sanitization requested", "job", job.ID, "volume", identifier,
		"bound_bytes", bound, "patterns", job.PatternNames())

	go func() {
		defer close(h.done)
		defer cancel(nil)
		h.result, h.err = a.scheduler.RunWithProgress(jobCtx, job, h.progress)
		close(h.progress)
	}()
	return h, nil
}

// watch отменяет задание, если устройство пропало или сменило носитель
func (a *App) watch(ctx context.Context, cancel context.CancelCauseFunc, identifier string, related []string) {
	events, err := a.watcher.Watch(ctx, append([]string{identifier}, related...)...)
	if err != nil {
		a.logger.Log("WARN", "hotplug watch failed", "volume", identifier, "error", err)
		return
	}
	if events == nil {
		return
	}
	go func() {
		select {
		case <-ctx.Done():
		case ev, ok := <-events:
			if !ok {
				return
			}
			cancel(reason.New(reason.Cancelled, "device %s reported %s during sanitization", ev.Identifier, ev.Action))
		}
	}()
}

// PassPlan возвращает имена паттернов проходов, которые получит запрос
func (a *App) PassPlan(req SanitizeRequest) ([]string, error) {
	patterns, err := a.resolvePatterns(req)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(patterns))
	for i, p := range patterns {
		names[i] = p.Name()
	}
	return names, nil
}

// resolvePatterns: явные паттерны, иначе профиль запроса или конфигурации.
// PassCount обрезает или циклически повторяет профиль; с явными паттернами должен совпадать.
func (a *App) resolvePatterns(req SanitizeRequest) ([]wipe.Pattern, error) {
	var names []string
	switch {
	case len(req.Patterns) > 0:
		if req.PassCount != 0 && req.PassCount != len(req.Patterns) {
			return nil, reason.New(reason.InvalidRequest, "pass count %d does not match %d patterns", req.PassCount, len(req.Patterns))
		}
		names = req.Patterns
	case req.Profile != "":
		profile, err := config.ProfilePatterns(req.Profile)
		if err != nil {
			return nil, reason.Wrap(err, reason.InvalidRequest, "profile")
		}
		names = profile
	default:
		effective, err := a.config.EffectivePatterns()
		if err != nil {
			return nil, reason.Wrap(err, reason.InvalidRequest, "configured patterns")
		}
		names = effective
	}

	if len(req.Patterns) == 0 && req.PassCount > 0 {
		if req.PassCount > config.MaxPasses {
			return nil, reason.New(reason.InvalidRequest, "pass count %d exceeds %d", req.PassCount, config.MaxPasses)
		}
		cycled := make([]string, req.PassCount)
		for i := range cycled {
			cycled[i] = names[i%len(names)]
		}
		names = cycled
	}

	patterns, err := wipe.ParsePatterns(names)
	if err != nil {
		return nil, reason.Wrap(err, reason.InvalidRequest, "patterns")
	}
	return patterns, nil
}

// relatedVolumes: родительский диск и разделы цели
func relatedVolumes(identifier string, volumes []system.Volume) []string {
	target, ok := system.FindVolume(volumes, identifier)
	if !ok {
		return nil
	}
	var related []string
	if target.Parent != "" {
		related = append(related, target.Parent)
	}
	for _, v := range volumes {
		if v.Parent != "" && system.NormalizeIdentifier(v.Parent) == system.NormalizeIdentifier(target.Identifier) {
			related = append(related, v.Identifier)
		}
	}
	return related
}

// ReportInfo represents information about a report file
type ReportInfo struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// ListReports сканирует reporting.local_path и возвращает JSON отчёты, новые первыми
func (a *App) ListReports() ([]ReportInfo, error) {
	reportsDir := a.config.Reporting.LocalPath

	entries, err := os.ReadDir(reportsDir)
	if os.IsNotExist(err) {
		return []ReportInfo{}, nil
	}
	if err != nil {
		return nil, reason.Wrap(err, reason.Internal, "read reports directory %s", reportsDir)
	}

	var reports []ReportInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			a.logger.Log("WARN", "Failed to get file info", "file", entry.Name(), "error", err)
			continue
		}
		reports = append(reports, ReportInfo{
			Name:       entry.Name(),
			Path:       filepath.Join(reportsDir, entry.Name()),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].ModifiedAt.After(reports[j].ModifiedAt)
	})
	return reports, nil
}
