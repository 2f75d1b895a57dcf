package wipe

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"datasanitizer/internal/reason"
	"datasanitizer/internal/system"
)

// LockRegistry гарантирует не более одного задания на том.
// Внутри процесса - карта активных томов, между процессами - flock файл в dir.
type LockRegistry struct {
	mu     sync.Mutex
	active map[string]string // идентификатор -> ID задания
	dir    string
}

// NewLockRegistry создаёт реестр; пустой dir отключает межпроцессную блокировку
func NewLockRegistry(dir string) *LockRegistry {
	return &LockRegistry{active: make(map[string]string), dir: dir}
}

// Acquire занимает identifier для задания jobID. related - родительский диск и разделы:
// занятость любого из них тоже отказ. Возвращает функцию освобождения.
func (r *LockRegistry) Acquire(identifier, jobID string, related ...string) (func(), error) {
	key := system.NormalizeIdentifier(identifier)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range append([]string{identifier}, related...) {
		if owner, busy := r.active[system.NormalizeIdentifier(id)]; busy {
			return nil, reason.New(reason.AlreadyInProgress, "job %s is already running on %s", owner, id)
		}
	}

	var fl *flock.Flock
	if r.dir != "" {
		if err := os.MkdirAll(r.dir, 0755); err != nil {
			return nil, reason.Wrap(err, reason.AccessDenied, "create lock dir %s", r.dir)
		}
		fl = flock.New(filepath.Join(r.dir, lockFileName(key)))
		ok, err := fl.TryLock()
		if err != nil {
			return nil, reason.Wrap(err, reason.AccessDenied, "acquire lock for %s", identifier)
		}
		if !ok {
			return nil, reason.New(reason.AlreadyInProgress, "another process is sanitizing %s", identifier)
		}
	}

	r.active[key] = jobID

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.active, key)
			r.mu.Unlock()
			if fl != nil {
				_ = fl.Unlock()
			}
		})
	}, nil
}

// Busy сообщает, выполняется ли задание на томе
func (r *LockRegistry) Busy(identifier string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, busy := r.active[system.NormalizeIdentifier(identifier)]
	return busy
}

// Active возвращает занятые тома
func (r *LockRegistry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.active))
	for id := range r.active {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// lockFileName: /dev/sdb -> dev_sdb.lock, D: -> D.lock
func lockFileName(identifier string) string {
	name := strings.Trim(identifier, `/\.`)
	name = strings.NewReplacer("/", "_", `\`, "_", ":", "").Replace(name)
	return name + ".lock"
}
