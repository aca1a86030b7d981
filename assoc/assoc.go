// Package assoc registers the application as an "Open with" handler and as
// the default handler of archive file extensions for the current user.
//
// Every registry change is made under HKEY_CURRENT_USER through the [Keys]
// interface, so no administrator privileges are needed.
package assoc

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Defacto2/extractnow/userchoice"
	"go.uber.org/zap"
)

// AppName is the friendly application name shown by the shell.
const AppName = "ExtractNow"

const (
	classes   = `Software\Classes`
	fileExts  = `Software\Microsoft\Windows\CurrentVersion\Explorer\FileExts`
	openCmd   = `shell\open\command`
	openWith  = "OpenWithProgids"
	supported = "SupportedTypes"
)

var (
	ErrEmptyHash   = errors.New("user choice hash is empty")
	ErrNoSID       = errors.New("failed to get user SID")
	ErrUnsupported = errors.New("file associations are only supported on windows")
)

// KnownExtensions are the archive file extensions that the application can handle.
var KnownExtensions = []string{
	".zip", ".7z", ".rar", ".tar", ".gz", ".bz2", ".xz", ".lz", ".lzma",
	".cab", ".iso", ".wim", ".arj", ".lzh", ".z", ".tgz", ".tbz2", ".txz",
}

// State is the outcome of a registration.
type State int

const (
	Success           State = iota // Success means the registry was changed.
	AlreadyAssociated              // AlreadyAssociated means no change was needed.
	Error                          // Error means the registration failed.
)

func (s State) String() string {
	switch s {
	case Success:
		return "Success"
	case AlreadyAssociated:
		return "AlreadyAssociated"
	case Error:
		return "Error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Registration is the result of a registration request.
type Registration struct {
	State State
	Err   error
}

func failed(err error) Registration {
	return Registration{State: Error, Err: err}
}

// Normalize returns the extension with a leading dot.
func Normalize(ext string) string {
	ext = strings.TrimSpace(ext)
	if !strings.HasPrefix(ext, ".") {
		return "." + ext
	}
	return ext
}

// ProgID returns the program identifier the application registers for the extension,
// such as ExtractNow_zip for .zip.
func ProgID(ext string) string {
	return AppName + strings.ReplaceAll(Normalize(ext), ".", "_")
}

// Registrar writes the file association registry keys of an application.
type Registrar struct {
	Keys    Keys             // Keys is the registry of the current user.
	AppPath string           // AppPath is the absolute path of the application executable.
	Now     func() time.Time // Now returns the current time, the default is time.Now.
	SID     func() string    // SID returns the user security identifier, the default is userchoice.CurrentUserSID.
	Log     *zap.Logger      // Log is optional.
}

func (r *Registrar) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

func (r *Registrar) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Registrar) sid() string {
	if r.SID == nil {
		return userchoice.CurrentUserSID()
	}
	return r.SID()
}

// command returns the shell open command of the application.
func (r *Registrar) command() string {
	return `"` + r.AppPath + `" "%1"`
}

func (r *Registrar) icon() string {
	return r.AppPath + ",0"
}

// appKey returns the Applications key named after the executable file.
// The path is split on both separators, as AppPath is a Windows path
// even when the registry is not.
func (r *Registrar) appKey() string {
	name := r.AppPath[strings.LastIndexAny(r.AppPath, `\/`)+1:]
	return classes + `\Applications\` + name
}

// registerApp makes the application appear in the Open with list of the extensions.
func (r *Registrar) registerApp(exts ...string) error {
	app := r.appKey()
	if err := r.Keys.SetString(app, "FriendlyAppName", AppName); err != nil {
		return fmt.Errorf("register app %w", err)
	}
	if err := r.Keys.SetString(app+`\DefaultIcon`, "", r.icon()); err != nil {
		return fmt.Errorf("register app icon %w", err)
	}
	if err := r.Keys.SetString(app+`\`+openCmd, "", r.command()); err != nil {
		return fmt.Errorf("register app command %w", err)
	}
	for _, ext := range exts {
		if err := r.Keys.SetString(app+`\`+supported, ext, ""); err != nil {
			return fmt.Errorf("register app supported type %w", err)
		}
	}
	return nil
}

// registerProgID creates or updates the per-extension ProgID with a friendly
// type name, used by the Explorer Type column.
func (r *Registrar) registerProgID(ext string) error {
	key := classes + `\` + ProgID(ext)
	friendly := strings.ToUpper(strings.TrimPrefix(ext, ".")) + " file"
	if err := r.Keys.SetString(key, "", friendly); err != nil {
		return fmt.Errorf("register progid %w", err)
	}
	if err := r.Keys.SetString(key+`\DefaultIcon`, "", r.icon()); err != nil {
		return fmt.Errorf("register progid icon %w", err)
	}
	if err := r.Keys.SetString(key+`\`+openCmd, "", r.command()); err != nil {
		return fmt.Errorf("register progid command %w", err)
	}
	return nil
}

// associated reports whether the application already handles the extension,
// either as the default handler or as a matching Open with entry.
func (r *Registrar) associated(ext string) bool {
	progID := ProgID(ext)
	names, _ := r.Keys.ValueNames(classes + `\` + ext + `\` + openWith)
	inOpenWith := slices.Contains(names, progID)
	existing, _ := r.Keys.String(classes+`\`+progID+`\`+openCmd, "")
	choice, _ := r.Keys.String(fileExts+`\`+ext+`\UserChoice`, "ProgId")
	def, _ := r.Keys.String(classes+`\`+ext, "")

	if strings.EqualFold(choice, progID) {
		return true
	}
	if choice == "" && strings.EqualFold(def, progID) {
		return true
	}
	return inOpenWith && strings.EqualFold(existing, r.command())
}

// RegisterOpenWith registers the application as an "Open with" option for the extension.
// The class default of the extension is only set when the user has made no choice
// and no other default exists.
func (r *Registrar) RegisterOpenWith(ext string) Registration {
	ext = Normalize(ext)
	progID := ProgID(ext)
	if err := r.registerApp(ext); err != nil {
		return failed(err)
	}
	if r.associated(ext) {
		r.logger().Debug("already associated", zap.String("ext", ext))
		return Registration{State: AlreadyAssociated}
	}
	if err := r.registerProgID(ext); err != nil {
		return failed(err)
	}
	if err := r.Keys.SetNone(classes+`\`+ext+`\`+openWith, progID); err != nil {
		return failed(fmt.Errorf("register open with %w", err))
	}
	choice, _ := r.Keys.String(fileExts+`\`+ext+`\UserChoice`, "ProgId")
	if choice == "" {
		def, _ := r.Keys.String(classes+`\`+ext, "")
		if def == "" {
			if err := r.Keys.SetString(classes+`\`+ext, "", progID); err != nil {
				return failed(fmt.Errorf("register default %w", err))
			}
		}
	}
	r.logger().Info("registered open with", zap.String("ext", ext), zap.String("progid", progID))
	return Registration{State: Success}
}

// SetDefaultWithHash sets the application as the default handler of the extension by
// writing a UserChoice key that carries a valid hash, so the shell accepts it without
// asking the user for confirmation.
func (r *Registrar) SetDefaultWithHash(ext string) Registration {
	ext = Normalize(ext)
	progID := ProgID(ext)
	if reg := r.RegisterOpenWith(ext); reg.State == Error {
		return reg
	}
	sid := r.sid()
	if sid == "" {
		return failed(ErrNoSID)
	}
	hash := userchoice.Generate(ext, progID, sid, r.now().Truncate(time.Minute))
	if hash == "" {
		return failed(ErrEmptyHash)
	}
	key := fileExts + `\` + ext + `\UserChoice`
	if err := r.Keys.DeleteTree(key); err != nil {
		r.logger().Warn("delete user choice", zap.String("key", key), zap.Error(err))
	}
	if err := r.Keys.SetString(key, "Hash", hash); err != nil {
		return failed(fmt.Errorf("write user choice hash %w", err))
	}
	if err := r.Keys.SetString(key, "ProgId", progID); err != nil {
		return failed(fmt.Errorf("write user choice progid %w", err))
	}
	r.Keys.Notify()
	r.logger().Info("set default handler", zap.String("ext", ext), zap.String("progid", progID))
	return Registration{State: Success}
}

// EnsureMetadata registers the application and a ProgID for every known extension.
// It is best effort, the first error is returned after every extension was tried.
func (r *Registrar) EnsureMetadata() error {
	defer r.Keys.Notify()
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	keep(r.registerApp(KnownExtensions...))
	for _, ext := range KnownExtensions {
		keep(r.registerProgID(ext))
		keep(r.Keys.SetNone(classes+`\`+ext+`\`+openWith, ProgID(ext)))
	}
	return first
}

// Cleanup removes the registry entries created by the application and returns
// the number of removed items. It is best effort and never fails.
func (r *Registrar) Cleanup() int {
	defer r.Keys.Notify()
	removed := 0
	log := r.logger()
	if err := r.Keys.DeleteTree(r.appKey()); err == nil {
		removed++
	} else {
		log.Debug("cleanup app key", zap.Error(err))
	}
	for _, ext := range KnownExtensions {
		progID := ProgID(ext)
		key := classes + `\` + ext + `\` + openWith
		names, _ := r.Keys.ValueNames(key)
		if slices.Contains(names, progID) {
			if err := r.Keys.DeleteValue(key, progID); err == nil {
				removed++
			}
		}
		if err := r.Keys.DeleteTree(classes + `\` + progID); err != nil {
			log.Debug("cleanup progid", zap.String("progid", progID), zap.Error(err))
		}
	}
	// stray ProgIDs from older versions
	names, _ := r.Keys.SubKeyNames(classes)
	for _, name := range names {
		if !strings.HasPrefix(name, AppName+"_") {
			continue
		}
		if err := r.Keys.DeleteTree(classes + `\` + name); err == nil {
			removed++
		}
	}
	log.Info("cleanup association entries", zap.Int("removed", removed))
	return removed
}
