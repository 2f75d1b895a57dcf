package wipe

// Device - открытое блочное устройство
type Device interface {
	WriteAt(p []byte, off int64) (int, error)
	ReadAt(p []byte, off int64) (int, error)
	// Sync сбрасывает записанные данные на носитель
	Sync() error
	// Size возвращает размер устройства в байтах
	Size() (uint64, error)
	// DropCache выбрасывает страничный кэш диапазона, чтобы чтение шло с носителя
	DropCache(off, length int64) error
	Close() error
}

// Opener открывает устройства по идентификатору тома
type Opener interface {
	// OpenExclusive открывает устройство на запись с эксклюзивным доступом
	OpenExclusive(identifier string) (Device, error)
	// OpenRead открывает новый дескриптор только для чтения
	OpenRead(identifier string) (Device, error)
}
