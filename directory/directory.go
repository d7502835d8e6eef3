/*
Package directory holds who the users are and where their requests go.

PURPOSE:
  Maps an authenticated email to a User (employee id, display name,
  role) and answers the routing questions the notifier asks: who is the
  approver, and who is this employee's manager.

FILE FORMAT (YAML; JSON is accepted as-is):

  defaultRole: developer
  approverEmail: approver@example.com
  emailDomain: example.com
  users:
    - employeeId: alice
      displayName: Alice A
      email: alice@example.com
      role: admin
      managerEmail: boss@example.com

  The older roles-map form is also read and converted on load:

  defaultRole: developer
  roles:
    alice: admin

PERSISTENCE:
  Admin changes are written back atomically as YAML (temp file + rename).

SEE ALSO:
  - api/identity.go: Resolves the caller's email from proxy headers
  - notify/email.go: Uses ApproverEmail / ManagerEmail
*/
package directory

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	RoleAdmin     = "admin"
	RoleDeveloper = "developer"
)

var (
	// ErrUserNotFound is returned by admin operations on unknown users.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidUser is returned when an upsert lacks an employee id.
	ErrInvalidUser = errors.New("invalid user")
)

// User is a directory entry.
type User struct {
	EmployeeID   string `yaml:"employeeId" json:"employeeId"`
	DisplayName  string `yaml:"displayName,omitempty" json:"displayName"`
	Email        string `yaml:"email,omitempty" json:"email"`
	Role         string `yaml:"role,omitempty" json:"role"`
	ManagerEmail string `yaml:"managerEmail,omitempty" json:"managerEmail,omitempty"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return strings.EqualFold(u.Role, RoleAdmin)
}

type document struct {
	DefaultRole   string            `yaml:"defaultRole,omitempty"`
	ApproverEmail string            `yaml:"approverEmail,omitempty"`
	EmailDomain   string            `yaml:"emailDomain,omitempty"`
	Users         []User            `yaml:"users,omitempty"`
	Roles         map[string]string `yaml:"roles,omitempty"`
}

// Options are defaults applied when the file does not set them.
type Options struct {
	DefaultRole   string
	ApproverEmail string
	EmailDomain   string
}

// Directory is a concurrency-safe user directory.
type Directory struct {
	path string

	mu            sync.RWMutex
	users         map[string]User
	defaultRole   string
	approverEmail string
	emailDomain   string
}

// New creates an empty in-memory directory.
func New(opts Options) *Directory {
	d := &Directory{users: make(map[string]User)}
	d.applyDefaults(opts)
	return d
}

// Load reads the directory at path. A missing file yields an empty
// directory that will be created on first Save.
func Load(path string, opts Options) (*Directory, error) {
	d := New(opts)
	d.path = path
	if path == "" {
		return d, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse directory %s: %w", path, err)
	}
	d.apply(doc, opts)
	return d, nil
}

func (d *Directory) applyDefaults(opts Options) {
	d.defaultRole = opts.DefaultRole
	if d.defaultRole == "" {
		d.defaultRole = RoleDeveloper
	}
	d.approverEmail = opts.ApproverEmail
	d.emailDomain = opts.EmailDomain
}

func (d *Directory) apply(doc document, opts Options) {
	if doc.DefaultRole != "" {
		d.defaultRole = doc.DefaultRole
	}
	if doc.ApproverEmail != "" {
		d.approverEmail = doc.ApproverEmail
	}
	if doc.EmailDomain != "" {
		d.emailDomain = doc.EmailDomain
	}

	for id, role := range doc.Roles {
		key := normalizeID(id)
		if key == "" {
			continue
		}
		d.users[key] = d.normalize(User{EmployeeID: id, Role: role})
	}
	for _, u := range doc.Users {
		key := normalizeID(u.EmployeeID)
		if key == "" {
			continue
		}
		d.users[key] = d.normalize(u)
	}
}

func (d *Directory) normalize(u User) User {
	u.EmployeeID = strings.TrimSpace(u.EmployeeID)
	u.DisplayName = strings.TrimSpace(u.DisplayName)
	u.Email = strings.TrimSpace(u.Email)
	u.Role = strings.ToLower(strings.TrimSpace(u.Role))
	u.ManagerEmail = strings.TrimSpace(u.ManagerEmail)
	if u.Role == "" {
		u.Role = d.defaultRole
	}
	if u.DisplayName == "" {
		u.DisplayName = u.EmployeeID
	}
	if u.Email == "" && d.emailDomain != "" {
		u.Email = u.EmployeeID + "@" + d.emailDomain
	}
	return u
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// EmployeeIDFromEmail returns the local part of an email address.
func EmployeeIDFromEmail(email string) string {
	email = strings.TrimSpace(email)
	if at := strings.Index(email, "@"); at >= 0 {
		return email[:at]
	}
	return email
}

// =============================================================================
// LOOKUPS
// =============================================================================

// BuildUser resolves an authenticated email into a User. Users not in the
// directory get the default role and the email's local part as id.
func (d *Directory) BuildUser(email, displayName string) User {
	email = strings.TrimSpace(email)
	id := EmployeeIDFromEmail(email)

	d.mu.RLock()
	known, ok := d.users[normalizeID(id)]
	d.mu.RUnlock()

	u := User{EmployeeID: id, Email: email, DisplayName: displayName}
	if ok {
		u.Role = known.Role
		u.ManagerEmail = known.ManagerEmail
		if u.DisplayName == "" {
			u.DisplayName = known.DisplayName
		}
	}

	d.mu.RLock()
	u = d.normalize(u)
	d.mu.RUnlock()
	return u
}

// Lookup returns a user by employee id.
func (d *Directory) Lookup(employeeID string) (User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[normalizeID(employeeID)]
	return u, ok
}

// Users returns all users sorted by employee id.
func (d *Directory) Users() []User {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]User, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		return normalizeID(out[i].EmployeeID) < normalizeID(out[j].EmployeeID)
	})
	return out
}

// DefaultRole returns the role given to unknown users.
func (d *Directory) DefaultRole() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.defaultRole
}

// ApproverEmail returns the address that receives every submission.
func (d *Directory) ApproverEmail() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.approverEmail
}

// ManagerEmail returns the manager of employeeID, or "".
func (d *Directory) ManagerEmail(employeeID string) string {
	u, ok := d.Lookup(employeeID)
	if !ok {
		return ""
	}
	return u.ManagerEmail
}

// =============================================================================
// ADMIN OPERATIONS
// =============================================================================

// Upsert adds or replaces a user and persists the directory.
func (d *Directory) Upsert(u User) (User, error) {
	key := normalizeID(u.EmployeeID)
	if key == "" {
		return User{}, fmt.Errorf("%w: employeeId is required", ErrInvalidUser)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	prev, existed := d.users[key]
	if existed && u.ManagerEmail == "" {
		u.ManagerEmail = prev.ManagerEmail
	}
	u = d.normalize(u)
	d.users[key] = u

	if err := d.saveLocked(); err != nil {
		if existed {
			d.users[key] = prev
		} else {
			delete(d.users, key)
		}
		return User{}, err
	}
	return u, nil
}

// SetRole changes the role of an existing user.
func (d *Directory) SetRole(employeeID, role string) (User, error) {
	key := normalizeID(employeeID)

	d.mu.Lock()
	defer d.mu.Unlock()

	prev, ok := d.users[key]
	if !ok {
		return User{}, fmt.Errorf("%w: %s", ErrUserNotFound, employeeID)
	}
	u := prev
	u.Role = role
	u = d.normalize(u)
	d.users[key] = u

	if err := d.saveLocked(); err != nil {
		d.users[key] = prev
		return User{}, err
	}
	return u, nil
}

// Delete removes a user.
func (d *Directory) Delete(employeeID string) error {
	key := normalizeID(employeeID)

	d.mu.Lock()
	defer d.mu.Unlock()

	prev, ok := d.users[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUserNotFound, employeeID)
	}
	delete(d.users, key)

	if err := d.saveLocked(); err != nil {
		d.users[key] = prev
		return err
	}
	return nil
}

// Save writes the directory to its file.
func (d *Directory) Save() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.saveLocked()
}

func (d *Directory) saveLocked() error {
	if d.path == "" {
		return nil
	}

	doc := document{
		DefaultRole:   d.defaultRole,
		ApproverEmail: d.approverEmail,
		EmailDomain:   d.emailDomain,
		Users:         make([]User, 0, len(d.users)),
	}
	for _, u := range d.users {
		doc.Users = append(doc.Users, u)
	}
	sort.Slice(doc.Users, func(i, j int) bool {
		return normalizeID(doc.Users[i].EmployeeID) < normalizeID(doc.Users[j].EmployeeID)
	})

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return fmt.Errorf("write directory: %w", err)
	}
	return writeAtomic(d.path, data)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write directory: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write directory: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write directory: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write directory: %w", err)
	}
	return nil
}
