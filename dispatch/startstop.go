package dispatch

import (
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/printd/printd/attr"
	"github.com/printd/printd/job"
	"github.com/printd/printd/printer"
)

const attrDocumentFormat = "document-format"

// startJob implements spec.md §4.4 "start_job".
func (d *Dispatcher) startJob(r *job.Record, p *printer.Printer) error {
	if r.NumFiles == 0 {
		return d.Store.Cancel(r.ID, false)
	}

	var chain []FilterChainEntry
	if !p.Remote {
		fromType := currentFileType(r)
		resolved, ok := d.Filters.Resolve(fromType, p.NativeType)
		if !ok {
			return errors.New("dispatch: no filter chain available")
		}
		for _, f := range resolved {
			if f.Program == "-" {
				continue
			}
			chain = append(chain, f)
		}
	}

	cost := 0
	for _, f := range chain {
		cost += f.Cost
	}

	if d.FilterLevel > 0 && d.FilterLimit > 0 && d.FilterLevel+cost > d.FilterLimit {
		return ErrAdmissionDeferred
	}

	d.FilterLevel += cost
	r.Cost = cost
	r.State = job.EState.Processing()
	r.ResetStatus()
	r.AssignedPrinter = p.Name
	d.Registry.SetCurrentJob(p.Name, r.ID)
	d.Registry.SetState(p.Name, printer.EState.Processing())

	if r.CurrentFile == 0 {
		r.StampTime("time-at-processing", time.Now())
	}

	startBanner, endBanner := d.bannerPolicy(r, p)
	options := d.buildOptionsString(r, p, startBanner || endBanner)
	plan := Plan{
		Chain:           chain,
		Argv:            d.composeArgv(r, p, options, startBanner || endBanner),
		Env:             d.composeEnv(r, p),
		Filename:        d.Store.DataFilePath(r.ID, r.CurrentFile+1),
		DeviceURI:       p.DeviceURI,
		EmitStartBanner: startBanner,
		EmitEndBanner:   endBanner,
	}

	if err := d.Launcher.Start(r, p, plan); err != nil {
		d.FilterLevel -= cost
		r.State = job.EState.Pending()
		r.AssignedPrinter = ""
		d.Registry.SetCurrentJob(p.Name, 0)
		d.Registry.SetState(p.Name, printer.EState.Idle())
		return errors.Wrap(err, "dispatch: launch failed")
	}
	return nil
}

// StartJobOnPrinter re-enters start_job for the same printer a job was
// already assigned to (spec.md §4.5 "On EOF": "more files remain,
// start_job again with the same printer").
func (d *Dispatcher) StartJobOnPrinter(r *job.Record, p *printer.Printer) error {
	return d.startJob(r, p)
}

// StopJob implements spec.md §4.4 "stop_job". Its signature matches
// job.Stopper so job.Store.Cancel can invoke it directly without
// importing dispatch.
func (d *Dispatcher) StopJob(r *job.Record, force bool) {
	if r.State != job.EState.Processing() {
		return
	}
	d.FilterLevel -= r.Cost
	if d.FilterLevel < 0 {
		d.FilterLevel = 0
	}

	newState := printer.EState.Idle()
	if r.WorstOutcome == job.OutcomeBackendFault {
		newState = printer.EState.Stopped()
	}

	r.State = job.EState.Stopped()
	if r.AssignedPrinter != "" {
		d.Registry.SetCurrentJob(r.AssignedPrinter, 0)
		d.Registry.SetState(r.AssignedPrinter, newState)
	}
	r.AssignedPrinter = ""
	r.CurrentFile--
	if r.CurrentFile < 0 {
		r.CurrentFile = 0
	}

	if d.Launcher != nil {
		d.Launcher.Stop(r, force)
	}
	r.StatusPipe = nil
	r.LineBuffer = nil
}

func (d *Dispatcher) bannerPolicy(r *job.Record, p *printer.Printer) (start, end bool) {
	if p.Remote || p.Implicit {
		return false, false
	}
	if r.JobSheetsAttr == nil || len(r.JobSheetsAttr.Values) < 2 {
		return false, false
	}
	start = r.CurrentFile == 0 && r.JobSheetsAttr.Values[0].Text != "none"
	end = r.CurrentFile == r.NumFiles-1 && r.JobSheetsAttr.Values[1].Text != "none"
	return
}

// buildOptionsString implements spec.md §4.4's flat options-string
// algorithm, folding in the emit.c quoting rule (SPEC_FULL.md
// supplemented feature 7) and resolving the "dropped attribute"
// ambiguity (spec.md §9 open question) as: the job-* whitelist applies
// only to local (non-remote, non-implicit) destinations; remote jobs
// keep every job-* attribute that survives the MIME/URI/language/time-
// filters.
func (d *Dispatcher) buildOptionsString(r *job.Record, p *printer.Printer, sendingBanner bool) string {
	if r.Catalog == nil {
		return ""
	}
	local := !p.Remote && !p.Implicit
	var tokens []string
	for _, a := range r.Catalog.Attributes() {
		if a.Separator || a.Group != attr.EGroupTag.Job() {
			continue
		}
		if strings.HasPrefix(a.Name, "time-") {
			continue
		}
		if a.Tag == attr.EValueTag.MimeMediaType() || a.Tag == attr.EValueTag.URI() {
			continue
		}
		if a.Tag == attr.EValueTag.TextWithLanguage() || a.Tag == attr.EValueTag.NameWithLanguage() {
			continue
		}
		if local && strings.HasPrefix(a.Name, "job-") {
			switch a.Name {
			case "job-billing", "job-sheets", "job-hold-until", "job-priority":
			default:
				continue
			}
		}
		if sendingBanner && a.Name == "page-label" {
			continue
		}
		if len(a.Values) == 0 {
			continue
		}
		if a.Tag == attr.EValueTag.Boolean() {
			if a.Values[0].Boolean {
				tokens = append(tokens, a.Name)
			} else {
				tokens = append(tokens, "no"+a.Name)
			}
			continue
		}
		tokens = append(tokens, a.Name+"="+formatOptionValues(a.Tag, a.Values))
	}
	return strings.Join(tokens, " ")
}

func formatOptionValues(tag attr.ValueTag, values []attr.Value) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = quoteIfNeeded(scalarString(tag, v))
	}
	return strings.Join(parts, ",")
}

func scalarString(tag attr.ValueTag, v attr.Value) string {
	switch tag {
	case attr.EValueTag.Integer(), attr.EValueTag.Enum():
		return strconv.Itoa(int(v.Integer))
	default:
		return v.Text
	}
}

// quoteIfNeeded applies cups/emit.c's rule: values containing
// whitespace are single-quoted, with any embedded `'` escaped as `\'`.
func quoteIfNeeded(s string) string {
	if !strings.ContainsAny(s, " \t") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}

// composeArgv implements spec.md §4.4's argv composition. When
// sendingBanner is true, the user-supplied copies count is not used
// (spec.md §4.4: "if sending the banner page, do not use the
// user-supplied copies count nor the page-label"; page-label is
// already stripped from options by buildOptionsString).
func (d *Dispatcher) composeArgv(r *job.Record, p *printer.Printer, options string, sendingBanner bool) []string {
	username := ""
	if r.UsernameAttr != nil && len(r.UsernameAttr.Values) > 0 {
		username = r.UsernameAttr.Values[0].Text
	}
	title := ""
	if r.TitleAttr != nil && len(r.TitleAttr.Values) > 0 {
		title = r.TitleAttr.Values[0].Text
	}
	copies := "1"
	if !sendingBanner && r.Catalog != nil {
		if c := r.Catalog.Find("copies", attr.EValueTag.Integer()); c != nil && len(c.Values) > 0 {
			copies = strconv.Itoa(int(c.Values[0].Integer))
		}
	}
	filename := d.Store.DataFilePath(r.ID, r.CurrentFile+1)
	return []string{p.Name, strconv.Itoa(r.ID), username, title, copies, options, filename}
}

// composeEnv implements spec.md §4.4's environment composition.
// NLSPATH and CLASSIFICATION are both named as optional/site-dependent
// in spec.md and are omitted here: printd carries no site
// classification policy or localized message catalog path to source
// them from.
func (d *Dispatcher) composeEnv(r *job.Record, p *printer.Printer) []string {
	lang := "C"
	charset := "us-ascii"
	if r.Catalog != nil {
		if a := r.Catalog.Find("attributes-natural-language", attr.EValueTag.NaturalLanguage()); a != nil && len(a.Values) > 0 {
			lang = languageValue(a.Values[0].Text)
		}
		if df := r.Catalog.Find(attrDocumentFormat, attr.EValueTag.MimeMediaType()); df != nil && len(df.Values) > 0 {
			if cs := extractCharsetParam(df.Values[0].Text); cs != "" {
				charset = cs
			}
		} else if a := r.Catalog.Find("attributes-charset", attr.EValueTag.Charset()); a != nil && len(a.Values) > 0 {
			charset = a.Values[0].Text
		}
	}
	return []string{
		"PATH=/usr/bin:/usr/sbin:/bin",
		"SOFTWARE=printd/1.0",
		"USER=root",
		"TZ=" + time.Local.String(),
		"LANG=" + lang,
		"CHARSET=" + charset,
		"PPD=/etc/printd/ppd/" + p.Name + ".ppd",
		"CUPS_SERVERROOT=/etc/printd",
		"RIP_MAX_CACHE=8m",
		"TMPDIR=/var/spool/printd/tmp",
		"CONTENT_TYPE=" + currentFileType(r),
		"DEVICE_URI=" + p.DeviceURI,
		"PRINTER=" + p.Name,
		"CUPS_DATADIR=/usr/share/printd",
		"CUPS_FONTPATH=/usr/share/printd/fonts",
		dynamicLibraryPathVar(),
	}
}

func currentFileType(r *job.Record) string {
	if r.CurrentFile >= 0 && r.CurrentFile < len(r.FileTypes) {
		return r.FileTypes[r.CurrentFile]
	}
	return ""
}

func languageValue(tag string) string {
	switch len(tag) {
	case 2, 5:
		return tag
	default:
		return "C"
	}
}

func extractCharsetParam(mimeType string) string {
	idx := strings.Index(mimeType, "charset=")
	if idx < 0 {
		return ""
	}
	v := mimeType[idx+len("charset="):]
	if i := strings.IndexByte(v, ';'); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}

func dynamicLibraryPathVar() string {
	name := "LD_LIBRARY_PATH"
	if runtime.GOOS == "darwin" {
		name = "DYLD_LIBRARY_PATH"
	}
	return name + "=/usr/lib/printd/filter"
}
