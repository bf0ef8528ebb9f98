package cmdline

import (
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/language"

	"docgen/internal/drivers"
)

// ErrUsage is returned by Parse when fewer than two arguments are passed.
// It asks the caller to print the usage text; it is not a failure.
var ErrUsage = errors.New("usage requested")

// Parse builds a Job from the command line (program name excluded).
//
// Rules:
//   - args[0] is the template, args[1] the report output.
//   - Options are matched in a fixed precedence order, first match wins.
//   - Any -flag may carry a ":name" suffix. For datasource flags it names the
//     datasource; for -performance/-threads/-verify it carries the number.
//   - username/password/pod/encoding apply to the next datasource only.
//
// Errors:
//   - ErrUsage when len(args) < 2.
//   - Unknown options, malformed numbers, dates or locales, and a two-token
//     flag without its value.
func Parse(args []string) (*Job, error) {
	return parse(args, runtime.NumCPU())
}

// pending holds key=value settings that attach to the next datasource.
type pending struct {
	username, password, pod, encoding string
}

func (p *pending) common(name string) Common {
	c := Common{
		Name:     name,
		Username: p.username,
		Password: p.password,
	}
	if p.pod != "" {
		c.PodFilename = FullPath(p.pod)
	}
	return c
}

func parse(args []string, parallelism int) (*Job, error) {
	if len(args) < 2 {
		return nil, ErrUsage
	}
	if strings.TrimSpace(args[0]) == "" {
		return nil, errors.New("missing template file")
	}
	if strings.TrimSpace(args[1]) == "" {
		return nil, errors.New("missing output file")
	}

	job := &Job{
		TemplateFilename: FullPath(args[0]),
		ReportFilename:   args[1],
		NumThreads:       parallelism * 2,
	}
	if !strings.HasSuffix(strings.ToLower(args[1]), ".prn") {
		job.ReportFilename = FullPath(args[1])
	}

	var side pending
	add := func(ds Datasource) {
		job.Datasources = append(job.Datasources, ds)
		side = pending{}
	}

	for i := 2; i < len(args); i++ {
		tok := args[i]
		cmd, name := tok, ""
		if pos := strings.IndexByte(tok, ':'); pos != -1 {
			cmd, name = tok[:pos], tok[pos+1:]
		}

		next := func() (string, error) {
			if i+1 >= len(args) {
				return "", errors.Errorf("missing value after %s", tok)
			}
			i++
			return args[i], nil
		}

		switch cmd {
		case "-performance":
			n, err := atoi(cmd, name)
			if err != nil {
				return nil, err
			}
			job.NumReports = n
			continue

		case "-threads":
			n, err := atoi(cmd, name)
			if err != nil {
				return nil, err
			}
			job.NumThreads = n
			continue

		case "-verify":
			n, err := atoi(cmd, name)
			if err != nil {
				return nil, err
			}
			job.VerifyFlag = n
			continue

		case "-launch":
			job.Launch = true
			continue

		case "-basedir":
			dir, err := next()
			if err != nil {
				return nil, err
			}
			job.BaseDirectory = dir
			continue

		case "-rest":
			if n := len(job.Datasources); n > 0 {
				job.Datasources[n-1].Base().Restful = true
			}
			continue

		case "-xml", "-dom4j":
			location, err := next()
			if err != nil {
				return nil, err
			}
			schema := ""
			if split := strings.Index(location, "=schema:"); split != -1 {
				schema = strings.TrimSpace(location[split+len("=schema:"):])
				location = strings.TrimSpace(location[:split])
			}
			ds := &XML{
				Common:   side.common(name),
				Location: FullPath(location),
				XPath10:  cmd == "-dom4j",
			}
			if schema != "" {
				ds.SchemaFilename = FullPath(schema)
			}
			add(ds)
			continue

		case "-json":
			location, err := next()
			if err != nil {
				return nil, err
			}
			add(&JSON{
				Common:   side.common(name),
				Location: FullPath(location),
				Encoding: side.encoding,
			})
			continue

		case "-odata":
			url, err := next()
			if err != nil {
				return nil, err
			}
			add(&OData{Common: side.common(name), URL: url})
			continue

		case "-sforce":
			add(&Salesforce{Common: side.common(name), URL: DefaultSalesforceURL})
			continue

		case "-dataset":
			value, err := next()
			if err != nil {
				return nil, err
			}
			add(&Dataset{Common: Common{Name: name}, Value: value})
			continue
		}

		if strings.HasPrefix(cmd, "-") {
			if d, ok := drivers.Lookup(cmd[1:]); ok {
				conn, err := next()
				if err != nil {
					return nil, err
				}
				add(&SQL{Common: side.common(name), Driver: d, ConnectionString: conn})
				continue
			}
		}

		equ := strings.IndexByte(tok, '=')
		if equ == -1 {
			return nil, errors.Errorf("unknown option %s", tok)
		}
		key, value := tok[:equ], tok[equ+1:]

		switch key {
		case "locale":
			loc, err := parseLocale(value)
			if err != nil {
				return nil, err
			}
			job.Locale = &loc
		case "version", "-version":
			v, err := strconv.Atoi(value)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid template version %q", value)
			}
			job.TemplateVersion = &v
		case "username":
			side.username = value
		case "password":
			side.password = value
		case "pod":
			side.pod = value
		case "encoding":
			side.encoding = value
		default:
			v, err := ParseValue(value)
			if err != nil {
				return nil, errors.Wrapf(err, "parameter %s", key)
			}
			job.Params.Set(key, v)
		}
	}

	return job, nil
}

func atoi(flag, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrapf(err, "%s needs a number, got %q", flag, s)
	}
	return n, nil
}

// parseLocale accepts en_US, en-US or en.
func parseLocale(s string) (Locale, error) {
	lang, region, _ := strings.Cut(strings.ReplaceAll(s, "-", "_"), "_")
	if _, err := language.ParseBase(lang); err != nil {
		return Locale{}, errors.Wrapf(err, "invalid locale %q", s)
	}
	if region != "" {
		if _, err := language.ParseRegion(region); err != nil {
			return Locale{}, errors.Wrapf(err, "invalid locale %q", s)
		}
	}
	return Locale{Language: lang, Region: region}, nil
}
