package catalog

import "github.com/loykin/mongorun/internal/constants"

const (
	// Unordered is the default Order. It sorts before every explicit order.
	Unordered = constants.UnorderedScript
	// NoTest disables verification.
	NoTest = constants.NoTestMethod
)

// ScriptOptions carries the declarative metadata of one script.
type ScriptOptions struct {
	Ticket      string
	Description string
	// TestMethod names a verification routine registered with Group.Verify.
	// "none" (any case) or empty disables verification.
	TestMethod string
	// RunAlways bypasses the idempotency gate.
	RunAlways bool
	Order     int
	// RunAt lists the environments the script may run in; empty means all.
	RunAt      []string
	AutoBackup bool
	// TargetBackupDatabase receives the backup copy; empty means the same database.
	TargetBackupDatabase string
}

// Opts starts options with Order Unordered and no verification.
func Opts(ticket, description string) ScriptOptions {
	return ScriptOptions{
		Ticket:      ticket,
		Description: description,
		TestMethod:  NoTest,
		Order:       Unordered,
	}
}

func (o ScriptOptions) WithOrder(n int) ScriptOptions {
	o.Order = n
	return o
}

func (o ScriptOptions) Always() ScriptOptions {
	o.RunAlways = true
	return o
}

func (o ScriptOptions) At(envs ...string) ScriptOptions {
	o.RunAt = append(append([]string(nil), o.RunAt...), envs...)
	return o
}

func (o ScriptOptions) Backup() ScriptOptions {
	o.AutoBackup = true
	return o
}

// BackupTo enables backup into another database.
func (o ScriptOptions) BackupTo(database string) ScriptOptions {
	o.AutoBackup = true
	o.TargetBackupDatabase = database
	return o
}

func (o ScriptOptions) TestWith(method string) ScriptOptions {
	o.TestMethod = method
	return o
}
