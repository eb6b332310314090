package jobconfig

import "github.com/torvald-bar/bargo/internal/catalog"

// MountEntry names a device or remote mount point a job requires before a
// run starts (jobs.c's MountNode/mountList).
type MountEntry struct {
	Name          string
	AlwaysUnmount bool
}

// ScheduleEntry is a job's raw [schedule] section: a calendar/interval
// pattern plus the archive type it triggers (jobs.c's ScheduleNode).
// Date/WeekDays/Time fields use "*" (AnyValue) to mean "any".
type ScheduleEntry struct {
	UUID         string
	ParentUUID   string
	Year         string // "*" or a 4-digit year
	Month        string // "*" or 1-12
	Day          string // "*" or 1-31
	WeekDays     uint8  // bitmask bit0=Monday .. bit6=Sunday; 0x7F = any
	Hour         string // "*" or 0-23
	Minute       string // "*" or 0-59
	ArchiveType  catalog.ArchiveType
	IntervalSecs int
	CustomText   string
	NoStorage    bool
	Enabled      bool
}

// AnyValue is the wildcard token for schedule date/time fields.
const AnyValue = "*"

// WeekDayAll is the bitmask meaning every day of the week.
const WeekDayAll uint8 = 0x7F

// PersistenceEntry is a job's raw [persistence <archiveType>] section: a
// retention rule scoped to one archive type (jobs.c's PersistenceNode).
// KeepAll/KeepUnlimited/AgeForever are sentinels carried as -1.
type PersistenceEntry struct {
	ArchiveType catalog.ArchiveType
	MinKeep     int
	MaxKeep     int
	MaxAgeDays  int
}

const (
	KeepAll       = -1 // minKeep sentinel: keep every run
	KeepUnlimited = -1 // maxKeep sentinel: no upper bound
	AgeForever    = -1 // maxAge sentinel: never expire by age
)

// Job is a job file's parsed contents: the default section plus its
// repeatable schedule and persistence sections (jobs.c's JobNode.job).
type Job struct {
	Name string // derived from the job file's basename, not a config key

	UUID string

	SlaveHostName     string
	SlaveHostPort     int
	SlaveHostForceTLS bool

	ArchiveName         string
	ArchiveType         catalog.ArchiveType
	IncrementalListFile string
	ArchivePartSize     int64
	DirectoryStripCount int
	Destination         string
	Owner               string

	PatternType PatternType
	IncludeFile  []Pattern
	IncludeImage []Pattern
	Exclude      []Pattern

	CompressAlgorithm string
	CryptAlgorithm    string
	CryptType         string
	CryptPasswordMode string
	CryptPassword     string
	CryptPublicKey    string

	FTPLoginName string
	FTPPassword  string

	SSHPort        int
	SSHLoginName   string
	SSHPassword    string
	SSHPublicKey   string
	SSHPrivateKey  string

	Mounts []MountEntry

	MaxStorageSize int64
	VolumeSize     int64
	ECC            bool

	ArchiveFileMode  string
	RestoreEntryMode string

	PreCommand       string
	PostCommand      string
	SlavePreCommand  string
	SlavePostCommand string

	NoStopOnError          bool
	NoStopOnAttributeError bool

	Comment string

	Schedules    []ScheduleEntry
	Persistence  []PersistenceEntry
}

// NewJob returns a Job with the defaults jobs.c assigns a freshly created
// JobNode (unbounded retention, normal archive type).
func NewJob(name string) *Job {
	return &Job{
		Name:        name,
		ArchiveType: catalog.ArchiveTypeNormal,
		PatternType: PatternGlob,
	}
}
