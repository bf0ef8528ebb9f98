// Package cmdline turns the RunReport command line into a Job. It makes no
// calls to the engine; everything here is pure data organisation.
package cmdline

import (
	"path/filepath"
	"strings"
)

// Locale is a language plus optional region, written as en_US.
type Locale struct {
	Language string
	Region   string
}

func (l Locale) String() string {
	if l.Region == "" {
		return l.Language
	}
	return l.Language + "_" + l.Region
}

// Verify flag values for -verify:N.
const (
	VerifyNone = iota
	VerifyTrackErrors
	VerifyVerify
	VerifyAll
)

// Job is everything passed on the command line.
type Job struct {
	TemplateFilename string
	// ReportFilename is absolute unless it names a printer (.prn).
	ReportFilename string

	Params      Params
	Datasources []Datasource

	Locale *Locale
	Launch bool
	// TemplateVersion is nil when not set.
	TemplateVersion *int

	// NumReports is the -performance run count. 0 means a single run.
	NumReports int
	// NumThreads is the worker count for performance runs.
	NumThreads int
	VerifyFlag int

	BaseDirectory string
}

// IsPerformance reports whether the job is a performance run.
func (j *Job) IsPerformance() bool { return j.NumReports != 0 }

// Clone returns a copy that shares no mutable state with j.
func (j *Job) Clone() *Job {
	cp := *j
	cp.Params = j.Params.Clone()
	if j.Datasources != nil {
		cp.Datasources = make([]Datasource, len(j.Datasources))
		for i, ds := range j.Datasources {
			cp.Datasources[i] = ds.clone()
		}
	}
	if j.Locale != nil {
		l := *j.Locale
		cp.Locale = &l
	}
	if j.TemplateVersion != nil {
		v := *j.TemplateVersion
		cp.TemplateVersion = &v
	}
	return &cp
}

// FullPath makes filename absolute unless it looks like a URL or connection
// string: a ':' anywhere other than index 1 (a Windows drive letter).
func FullPath(filename string) string {
	pos := strings.IndexByte(filename, ':')
	if pos != -1 && pos != 1 {
		return filename
	}
	abs, err := filepath.Abs(filename)
	if err != nil {
		return filename
	}
	return abs
}

// IsURL reports whether location is a URL or connection string rather than
// a local path, using the same rule as FullPath.
func IsURL(location string) bool {
	pos := strings.IndexByte(location, ':')
	return pos != -1 && pos != 1
}
