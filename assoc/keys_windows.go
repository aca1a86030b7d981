package assoc

import (
	"errors"
	"fmt"
	"syscall"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

// Notify the shell about file association and icon changes.
const (
	shcneAssocChanged = 0x08000000 // SHCNE_ASSOCCHANGED
	shcnfIDList       = 0x0000     // SHCNF_IDLIST
)

var (
	modShell32         = windows.NewLazySystemDLL("shell32.dll")
	procSHChangeNotify = modShell32.NewProc("SHChangeNotify")
)

// Registry is the registry of the current user, HKEY_CURRENT_USER.
type Registry struct{}

// System returns the registry of the current user.
func System() (Keys, error) {
	return Registry{}, nil
}

func create(path string) (registry.Key, error) {
	k, _, err := registry.CreateKey(registry.CURRENT_USER, path, registry.ALL_ACCESS)
	if err != nil {
		return 0, fmt.Errorf("create key HKCU\\%s: %w", path, err)
	}
	return k, nil
}

func open(path string, access uint32) (registry.Key, error) {
	k, err := registry.OpenKey(registry.CURRENT_USER, path, access)
	if errors.Is(err, registry.ErrNotExist) {
		return 0, ErrNotExist
	}
	if err != nil {
		return 0, fmt.Errorf("open key HKCU\\%s: %w", path, err)
	}
	return k, nil
}

func (Registry) SetString(path, name, value string) error {
	k, err := create(path)
	if err != nil {
		return err
	}
	defer k.Close()
	return k.SetStringValue(name, value)
}

// SetNone writes an empty binary value, the registry package cannot write REG_NONE
// and the shell only reads the names of the OpenWithProgids values.
func (Registry) SetNone(path, name string) error {
	k, err := create(path)
	if err != nil {
		return err
	}
	defer k.Close()
	return k.SetBinaryValue(name, []byte{})
}

func (Registry) String(path, name string) (string, error) {
	k, err := open(path, registry.QUERY_VALUE)
	if err != nil {
		return "", err
	}
	defer k.Close()
	v, _, err := k.GetStringValue(name)
	if errors.Is(err, registry.ErrNotExist) {
		return "", ErrNotExist
	}
	return v, err
}

func (Registry) ValueNames(path string) ([]string, error) {
	k, err := open(path, registry.QUERY_VALUE)
	if err != nil {
		return nil, err
	}
	defer k.Close()
	return k.ReadValueNames(-1)
}

func (Registry) SubKeyNames(path string) ([]string, error) {
	k, err := open(path, registry.ENUMERATE_SUB_KEYS)
	if err != nil {
		return nil, err
	}
	defer k.Close()
	return k.ReadSubKeyNames(-1)
}

func (Registry) DeleteValue(path, name string) error {
	k, err := open(path, registry.SET_VALUE)
	if err != nil {
		return err
	}
	defer k.Close()
	if err := k.DeleteValue(name); errors.Is(err, registry.ErrNotExist) {
		return ErrNotExist
	} else if err != nil {
		return err
	}
	return nil
}

// DeleteTree removes the subkeys depth first, as registry.DeleteKey only removes empty keys.
func (r Registry) DeleteTree(path string) error {
	names, err := r.SubKeyNames(path)
	if errors.Is(err, ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := r.DeleteTree(path + `\` + name); err != nil {
			return err
		}
	}
	err = registry.DeleteKey(registry.CURRENT_USER, path)
	if errors.Is(err, registry.ErrNotExist) {
		return nil
	}
	return err
}

func (Registry) Notify() {
	if err := procSHChangeNotify.Find(); err != nil {
		return
	}
	_, _, _ = syscall.SyscallN(procSHChangeNotify.Addr(), shcneAssocChanged, shcnfIDList, 0, 0)
}
