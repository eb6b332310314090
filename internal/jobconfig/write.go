package jobconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// WriteFile serializes job to path, tightening permissions to owner
// read/write only.
func WriteFile(job *Job, path string) error {
	if err := os.WriteFile(path, []byte(Format(job)), 0o600); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}

// Format renders job back into its INI-like text form: the default section
// first, then one [schedule] block per entry, then one
// [persistence <archiveType>] block per entry.
func Format(job *Job) string {
	var b strings.Builder

	writeKV(&b, "UUID", job.UUID)
	writeKV(&b, "slave-host-name", job.SlaveHostName)
	writeIntKV(&b, "slave-host-port", job.SlaveHostPort)
	writeBoolKV(&b, "slave-host-force-tls", job.SlaveHostForceTLS)
	writeKV(&b, "archive-name", job.ArchiveName)
	writeKV(&b, "archive-type", job.ArchiveType.String())
	writeKV(&b, "incremental-list-file", job.IncrementalListFile)
	if job.ArchivePartSize != 0 {
		writeKV(&b, "archive-part-size", FormatByteSize(job.ArchivePartSize))
	}
	writeIntKV(&b, "directory-strip", job.DirectoryStripCount)
	writeKV(&b, "destination", job.Destination)
	writeKV(&b, "owner", job.Owner)
	writeKV(&b, "pattern-type", job.PatternType.String())
	for _, p := range job.IncludeFile {
		writeKV(&b, "include-file", p.Text)
	}
	for _, p := range job.IncludeImage {
		writeKV(&b, "include-image", p.Text)
	}
	for _, p := range job.Exclude {
		writeKV(&b, "exclude", p.Text)
	}
	writeKV(&b, "compress-algorithm", job.CompressAlgorithm)
	writeKV(&b, "crypt-algorithm", job.CryptAlgorithm)
	writeKV(&b, "crypt-type", job.CryptType)
	writeKV(&b, "crypt-password-mode", job.CryptPasswordMode)
	writeKV(&b, "crypt-password", job.CryptPassword)
	writeKV(&b, "crypt-public-key", job.CryptPublicKey)
	writeKV(&b, "ftp-login-name", job.FTPLoginName)
	writeKV(&b, "ftp-password", job.FTPPassword)
	if job.SSHPort != 0 {
		writeIntKV(&b, "ssh-port", job.SSHPort)
	}
	writeKV(&b, "ssh-login-name", job.SSHLoginName)
	writeKV(&b, "ssh-password", job.SSHPassword)
	writeKV(&b, "ssh-public-key", job.SSHPublicKey)
	writeKV(&b, "ssh-private-key", job.SSHPrivateKey)
	for _, m := range job.Mounts {
		if m.AlwaysUnmount {
			writeKV(&b, "mount", m.Name+" always-unmount")
		} else {
			writeKV(&b, "mount", m.Name)
		}
	}
	if job.MaxStorageSize != 0 {
		writeKV(&b, "max-storage-size", FormatByteSize(job.MaxStorageSize))
	}
	if job.VolumeSize != 0 {
		writeKV(&b, "volume-size", FormatByteSize(job.VolumeSize))
	}
	writeBoolKV(&b, "ecc", job.ECC)
	writeKV(&b, "archive-file-mode", job.ArchiveFileMode)
	writeKV(&b, "restore-entry-mode", job.RestoreEntryMode)
	writeKV(&b, "pre-command", job.PreCommand)
	writeKV(&b, "post-command", job.PostCommand)
	writeKV(&b, "slave-pre-command", job.SlavePreCommand)
	writeKV(&b, "slave-post-command", job.SlavePostCommand)
	writeBoolKV(&b, "no-stop-on-error", job.NoStopOnError)
	writeBoolKV(&b, "no-stop-on-attribute-error", job.NoStopOnAttributeError)
	writeKV(&b, "comment", job.Comment)

	for _, s := range job.Schedules {
		b.WriteString("\n[schedule]\n")
		writeKV(&b, "UUID", s.UUID)
		writeKV(&b, "parentUUID", s.ParentUUID)
		fmt.Fprintf(&b, "date = %s-%s-%s\n", s.Year, s.Month, s.Day)
		writeKV(&b, "weekdays", formatWeekDays(s.WeekDays))
		fmt.Fprintf(&b, "time = %s:%s\n", s.Hour, s.Minute)
		writeKV(&b, "archive-type", s.ArchiveType.String())
		writeIntKV(&b, "interval", s.IntervalSecs)
		writeKV(&b, "text", s.CustomText)
		writeBoolKV(&b, "no-storage", s.NoStorage)
		writeBoolKV(&b, "enabled", s.Enabled)
		b.WriteString("[end]\n")
	}

	for _, p := range job.Persistence {
		fmt.Fprintf(&b, "\n[persistence %s]\n", p.ArchiveType.String())
		writeKV(&b, "min-keep", formatSentinel(p.MinKeep))
		writeKV(&b, "max-keep", formatSentinel(p.MaxKeep))
		writeKV(&b, "max-age", formatSentinel(p.MaxAgeDays))
		b.WriteString("[end]\n")
	}

	return b.String()
}

func writeKV(b *strings.Builder, key, value string) {
	if value == "" {
		return
	}
	b.WriteString(key)
	b.WriteString(" = ")
	b.WriteString(value)
	b.WriteString("\n")
}

func writeIntKV(b *strings.Builder, key string, value int) {
	if value == 0 {
		return
	}
	writeKV(b, key, strconv.Itoa(value))
}

func writeBoolKV(b *strings.Builder, key string, value bool) {
	if !value {
		return
	}
	writeKV(b, key, "yes")
}

func formatSentinel(n int) string {
	if n < 0 {
		return "*"
	}
	return strconv.Itoa(n)
}

func formatWeekDays(mask uint8) string {
	if mask == WeekDayAll {
		return AnyValue
	}
	names := []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
	var parts []string
	for i, name := range names {
		if mask&(1<<uint(i)) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, ",")
}
