package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/keydozer/internal/common"
	"github.com/dmitrijs2005/keydozer/internal/filex"
	"github.com/dmitrijs2005/keydozer/internal/models"
	"github.com/dmitrijs2005/keydozer/internal/vault"
	"github.com/spf13/pflag"
)

type command struct {
	names  []string
	locked bool // usable without an unlocked session
	usage  string
	run    func(a *App, ctx context.Context, args []string) error
}

var commands = []command{
	{[]string{"register"}, true, "register [owner]              create an account", (*App).register},
	{[]string{"unlock", "login"}, true, "unlock [owner]                open the vault", (*App).unlock},
	{[]string{"hint"}, true, "hint [owner]                  answer security questions to see the hint", (*App).hint},
	{[]string{"recover"}, true, "recover                       settle interrupted operations", (*App).recover},
	{[]string{"lock", "logout"}, false, "lock                          close the session", (*App).lock},
	{[]string{"add"}, false, "add [-s service] [-u user] [--url u] [-c cat] [-n notes|-m]", (*App).add},
	{[]string{"update"}, false, "update <id> [field=value ...] [--password]", (*App).update},
	{[]string{"list", "l"}, false, "list                          list entries", (*App).list},
	{[]string{"show"}, false, "show <id> [--reveal]          show one entry", (*App).show},
	{[]string{"delete", "rm"}, false, "delete <id>                   delete an entry", (*App).delete},
	{[]string{"reconcile", "status"}, false, "reconcile                     compare local and remote vaults", (*App).reconcile},
	{[]string{"push"}, false, "push                          push local-only and divergent entries", (*App).push},
	{[]string{"migrate"}, false, "migrate                       upgrade legacy entries", (*App).migrate},
	{[]string{"rotate"}, false, "rotate                        change the account password", (*App).rotate},
	{[]string{"share"}, false, "share --to <owner> <id> ...   share entries", (*App).share},
	{[]string{"inbox"}, false, "inbox                         list envelopes shared with you", (*App).inbox},
	{[]string{"accept"}, false, "accept <envelope>             copy shared entries into the vault", (*App).accept},
	{[]string{"reject"}, false, "reject <envelope>             decline a shared envelope", (*App).reject},
	{[]string{"revoke"}, false, "revoke <envelope>             withdraw an envelope you sent", (*App).revoke},
	{[]string{"export"}, false, "export --out <file>           write an encrypted backup", (*App).export},
	{[]string{"import"}, false, "import --in <file> [--mode all|new-only]", (*App).importBackup},
	{[]string{"sethint"}, false, "sethint <text>                set the password hint", (*App).setHint},
	{[]string{"questions"}, false, "questions                     set security questions", (*App).setQuestions},
	{[]string{"2fa"}, false, "2fa on|off                    toggle two-factor authentication", (*App).twoFactor},
	{[]string{"erase"}, false, "erase                         delete the account and all its data", (*App).erase},
}

func lookup(name string) *command {
	for i := range commands {
		for _, n := range commands[i].names {
			if n == name {
				return &commands[i]
			}
		}
	}
	return nil
}

func helpText(unlocked bool) string {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, c := range commands {
		if c.locked != unlocked || c.locked && c.names[0] == "recover" {
			fmt.Fprintf(&b, "  %s\n", c.usage)
		}
	}
	b.WriteString("  help | exit | quit")
	return b.String()
}

func (a *App) isUnlocked() bool {
	_, err := a.svc.Current()
	return err == nil
}

func (a *App) status() string {
	id, err := a.svc.Current()
	if err != nil {
		return "locked"
	}
	return id
}

func (a *App) dispatch(ctx context.Context, name string, args []string) error {
	c := lookup(name)
	if c == nil {
		return errUnknownCommand
	}
	if !c.locked && !a.isUnlocked() {
		return common.ErrLocked
	}
	return c.run(a, ctx, args)
}

func (a *App) flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

func parse(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	return nil
}

func (a *App) prompt(label string) (string, error) {
	return getSimpleText(a.reader, label, a.out)
}

func (a *App) arg(args []string, label string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return a.prompt(label)
}

// newPassword asks twice and fails when the answers differ.
func (a *App) newPassword(label string) ([]byte, error) {
	pw, err := getPassword(a.out, label+": ")
	if err != nil {
		return nil, err
	}
	again, err := getPassword(a.out, "Repeat "+strings.ToLower(label)+": ")
	if err != nil {
		common.WipeByteArray(pw)
		return nil, err
	}
	defer common.WipeByteArray(again)
	if len(pw) == 0 || !bytes.Equal(pw, again) {
		common.WipeByteArray(pw)
		return nil, fmt.Errorf("%w: passwords are empty or do not match", common.ErrInvalidInput)
	}
	return pw, nil
}

func (a *App) register(ctx context.Context, args []string) error {
	id, err := a.arg(args, "Owner id:")
	if err != nil {
		return err
	}
	pw, err := a.newPassword("Password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	if err := a.svc.Register(ctx, id, pw); err != nil {
		return err
	}
	printlnFn("Account created. Use 'unlock' to open it.")
	return nil
}

func (a *App) unlock(ctx context.Context, args []string) error {
	id, err := a.arg(args, "Owner id:")
	if err != nil {
		return err
	}
	pw, err := getPassword(a.out, "Password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	if err := a.svc.Unlock(ctx, id, pw); err != nil {
		return err
	}
	printlnFn("Vault unlocked.")

	n, err := a.svc.MigrateEntries(ctx)
	if err != nil {
		a.log.Warn(ctx, "legacy migration failed", "error", err)
		return nil
	}
	if n > 0 {
		printlnFn(fmt.Sprintf("Upgraded %d legacy entries.", n))
	}
	return nil
}

func (a *App) lock(ctx context.Context, _ []string) error {
	if err := a.svc.Lock(ctx); err != nil {
		return err
	}
	printlnFn("Vault locked.")
	return nil
}

func (a *App) add(ctx context.Context, args []string) error {
	var f models.EntryFields
	fs := a.flags("add")
	fs.StringVarP(&f.ServiceName, "service", "s", "", "service name")
	fs.StringVarP(&f.Username, "username", "u", "", "user name")
	fs.StringVar(&f.URL, "url", "", "login url")
	fs.StringVarP(&f.Category, "category", "c", "", "category")
	fs.StringVarP(&f.Notes, "notes", "n", "", "notes")
	multiline := fs.BoolP("multiline", "m", false, "read notes over several lines")
	if err := parse(fs, args); err != nil {
		return err
	}

	var err error
	if f.ServiceName == "" {
		if f.ServiceName, err = a.prompt("Service:"); err != nil {
			return err
		}
	}
	if f.Username == "" {
		if f.Username, err = a.prompt("Username:"); err != nil {
			return err
		}
	}
	pw, err := getPassword(a.out, "Password (empty to skip): ")
	if err != nil {
		return err
	}
	f.Password = string(pw)
	common.WipeByteArray(pw)
	if *multiline {
		if f.Notes, err = GetMultiline(a.reader, "Notes:", a.out); err != nil {
			return err
		}
	}

	id, err := a.svc.AddEntry(ctx, f)
	if err != nil {
		return err
	}
	printlnFn("Entry added:", id)
	return nil
}

func (a *App) update(ctx context.Context, args []string) error {
	fs := a.flags("update")
	askPassword := fs.BoolP("password", "p", false, "prompt for a new password")
	if err := parse(fs, args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return fmt.Errorf("%w: entry id is required", common.ErrInvalidInput)
	}

	item, err := a.svc.GetEntry(ctx, rest[0])
	if err != nil {
		return err
	}
	if len(item.Failed) > 0 {
		return fmt.Errorf("fields %s: %w", strings.Join(item.Failed, ", "), common.ErrDecryptionFailure)
	}
	fields := item.Fields
	for _, kv := range rest[1:] {
		name, value, ok := strings.Cut(kv, "=")
		p := fields.Field(name)
		if !ok || p == nil {
			return fmt.Errorf("%w: %q", models.ErrIncorrectField, kv)
		}
		*p = value
	}
	if *askPassword {
		pw, err := getPassword(a.out, "New entry password: ")
		if err != nil {
			return err
		}
		fields.Password = string(pw)
		common.WipeByteArray(pw)
	}

	if err := a.svc.UpdateEntry(ctx, item.ID, fields); err != nil {
		return err
	}
	printlnFn("Entry updated.")
	return nil
}

func (a *App) list(ctx context.Context, _ []string) error {
	items, err := a.svc.ListEntries(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		printlnFn("No entries.")
		return nil
	}

	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSERVICE\tUSERNAME\tCATEGORY\t")
	for _, it := range items {
		mark := ""
		if len(it.Failed) > 0 {
			mark = "unreadable: " + strings.Join(it.Failed, ",")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", it.ID, it.Fields.ServiceName, it.Fields.Username, it.Fields.Category, mark)
	}
	tw.Flush()
	printlnFn(strings.TrimRight(b.String(), "\n"))
	return nil
}

func (a *App) show(ctx context.Context, args []string) error {
	fs := a.flags("show")
	reveal := fs.Bool("reveal", false, "print the password")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: usage: show <id> [--reveal]", common.ErrInvalidInput)
	}

	item, err := a.svc.GetEntry(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	pw := strings.Repeat("*", 8)
	if *reveal || item.Fields.Password == "" {
		pw = item.Fields.Password
	}
	var b strings.Builder
	fmt.Fprintf(&b, "ID:       %s\n", item.ID)
	fmt.Fprintf(&b, "Service:  %s\n", item.Fields.ServiceName)
	fmt.Fprintf(&b, "Username: %s\n", item.Fields.Username)
	fmt.Fprintf(&b, "Password: %s\n", pw)
	fmt.Fprintf(&b, "URL:      %s\n", item.Fields.URL)
	fmt.Fprintf(&b, "Category: %s\n", item.Fields.Category)
	fmt.Fprintf(&b, "Notes:    %s", item.Fields.Notes)
	if len(item.Failed) > 0 {
		fmt.Fprintf(&b, "\nUnreadable fields: %s", strings.Join(item.Failed, ", "))
	}
	printlnFn(b.String())
	return nil
}

func (a *App) delete(ctx context.Context, args []string) error {
	id, err := a.arg(args, "Entry id:")
	if err != nil {
		return err
	}
	if err := a.svc.DeleteEntry(ctx, id); err != nil {
		return err
	}
	printlnFn("Entry deleted.")
	return nil
}

func (a *App) reconcile(ctx context.Context, _ []string) error {
	rep, err := a.svc.Reconcile(ctx)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("local %d, remote %d: %d synced, %d local-only, %d remote-only, %d divergent",
		rep.LocalTotal, rep.RemoteTotal,
		rep.Count(models.Synced), rep.Count(models.LocalOnly), rep.Count(models.RemoteOnly), rep.Count(models.Divergent)))
	for _, rec := range rep.Records {
		if rec.Classification == models.Synced && !rec.Flagged() {
			continue
		}
		line := fmt.Sprintf("  %s  %s", rec.ID, rec.Classification)
		if rec.Flagged() {
			line += fmt.Sprintf("  unreadable on %v", rec.FailedSides())
		}
		printlnFn(line)
	}
	return nil
}

func (a *App) push(ctx context.Context, _ []string) error {
	res, err := a.svc.PushRepairs(ctx)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Pushed %d entries.", len(res.Pushed)))
	if len(res.Skipped) > 0 {
		printlnFn("Skipped unreadable entries:", strings.Join(res.Skipped, ", "))
	}
	return nil
}

func (a *App) migrate(ctx context.Context, _ []string) error {
	n, err := a.svc.MigrateEntries(ctx)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Upgraded %d entries.", n))
	return nil
}

func (a *App) rotate(ctx context.Context, _ []string) error {
	old, err := getPassword(a.out, "Current password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(old)
	next, err := a.newPassword("New password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(next)

	rep, err := a.svc.RotatePassword(ctx, old, next)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Password changed. Re-encrypted %d local and %d remote entries.", rep.LocalRewritten, rep.RemoteRewritten))
	if len(rep.Flagged) > 0 {
		printlnFn("Left untouched (unreadable):", strings.Join(rep.Flagged, ", "))
	}
	return nil
}

func (a *App) share(ctx context.Context, args []string) error {
	fs := a.flags("share")
	to := fs.StringP("to", "t", "", "recipient owner id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *to == "" || fs.NArg() == 0 {
		return fmt.Errorf("%w: usage: share --to <owner> <id> ...", common.ErrInvalidInput)
	}
	envID, err := a.svc.ShareEntries(ctx, *to, fs.Args())
	if err != nil {
		return err
	}
	printlnFn("Shared as envelope", envID)
	return nil
}

func (a *App) inbox(ctx context.Context, _ []string) error {
	envs, err := a.svc.Inbox(ctx)
	if err != nil {
		return err
	}
	if len(envs) == 0 {
		printlnFn("Inbox is empty.")
		return nil
	}
	sort.Slice(envs, func(i, j int) bool { return envs[i].CreatedAt.Before(envs[j].CreatedAt) })

	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENVELOPE\tFROM\tENTRIES\tPENDING\tSENT")
	for i := range envs {
		e := &envs[i]
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", e.ID, e.SenderID, len(e.Entries), len(e.Pending()), e.CreatedAt.Format("2006-01-02 15:04"))
	}
	tw.Flush()
	printlnFn(strings.TrimRight(b.String(), "\n"))
	return nil
}

func (a *App) accept(ctx context.Context, args []string) error {
	envID, err := a.arg(args, "Envelope id:")
	if err != nil {
		return err
	}
	ids, err := a.svc.AcceptShare(ctx, envID)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Accepted %d entries.", len(ids)))
	return nil
}

func (a *App) reject(ctx context.Context, args []string) error {
	envID, err := a.arg(args, "Envelope id:")
	if err != nil {
		return err
	}
	if err := a.svc.RejectShare(ctx, envID); err != nil {
		return err
	}
	printlnFn("Envelope rejected.")
	return nil
}

func (a *App) revoke(ctx context.Context, args []string) error {
	envID, err := a.arg(args, "Envelope id:")
	if err != nil {
		return err
	}
	if err := a.svc.RevokeShare(ctx, envID); err != nil {
		return err
	}
	printlnFn("Envelope revoked.")
	return nil
}

func (a *App) export(ctx context.Context, args []string) error {
	fs := a.flags("export")
	out := fs.StringP("out", "o", "", "backup file to write")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *out == "" {
		return fmt.Errorf("%w: --out is required", common.ErrInvalidInput)
	}
	pass, err := a.newPassword("Backup passphrase")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pass)

	data, err := a.svc.Export(ctx, pass)
	if err != nil {
		return err
	}
	if err := filex.WriteFileAtomic(*out, data, 0o600); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	printlnFn("Backup written to", *out)
	return nil
}

func (a *App) importBackup(ctx context.Context, args []string) error {
	fs := a.flags("import")
	in := fs.StringP("in", "i", "", "backup file to read")
	mode := fs.String("mode", string(models.ImportNewOnly), "all or new-only")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *in == "" {
		return fmt.Errorf("%w: --in is required", common.ErrInvalidInput)
	}
	data, err := os.ReadFile(*in)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	pass, err := getPassword(a.out, "Backup passphrase: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pass)

	res, err := a.svc.Import(ctx, data, pass, models.ImportMode(*mode))
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Imported %d entries, skipped %d duplicates.", res.Imported, res.Skipped))
	return nil
}

func (a *App) setHint(ctx context.Context, args []string) error {
	hint := strings.Join(args, " ")
	if hint == "" {
		var err error
		if hint, err = a.prompt("Password hint:"); err != nil {
			return err
		}
	}
	if err := a.svc.SetPasswordHint(ctx, hint); err != nil {
		return err
	}
	printlnFn("Hint saved.")
	return nil
}

func (a *App) setQuestions(ctx context.Context, _ []string) error {
	var qas []vault.QA
	for {
		q, err := a.prompt("Question (empty to finish):")
		if err != nil {
			return err
		}
		if q == "" {
			break
		}
		ans, err := a.prompt("Answer:")
		if err != nil {
			return err
		}
		qas = append(qas, vault.QA{Question: q, Answer: ans})
	}
	if err := a.svc.SetSecurityQuestions(ctx, qas); err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Saved %d security questions.", len(qas)))
	return nil
}

func (a *App) hint(ctx context.Context, args []string) error {
	id, err := a.arg(args, "Owner id:")
	if err != nil {
		return err
	}
	questions, err := a.svc.SecurityQuestions(ctx, id)
	if err != nil {
		return err
	}
	answers := make([]string, 0, len(questions))
	for _, q := range questions {
		ans, err := a.prompt(q)
		if err != nil {
			return err
		}
		answers = append(answers, ans)
	}
	h, err := a.svc.PasswordHint(ctx, id, answers)
	if err != nil {
		return err
	}
	printlnFn("Hint:", h)
	return nil
}

func (a *App) twoFactor(ctx context.Context, args []string) error {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		return fmt.Errorf("%w: usage: 2fa on|off", common.ErrInvalidInput)
	}
	if err := a.svc.SetTwoFactor(ctx, args[0] == "on"); err != nil {
		return err
	}
	printlnFn("Two-factor authentication", args[0]+".")
	return nil
}

func (a *App) erase(ctx context.Context, _ []string) error {
	confirm, err := a.prompt("Type 'erase' to delete the account and every entry:")
	if err != nil {
		return err
	}
	if confirm != "erase" {
		printlnFn("Cancelled.")
		return nil
	}
	pw, err := getPassword(a.out, "Password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	if err := a.svc.EraseAccount(ctx, pw); err != nil {
		return err
	}
	printlnFn("Account erased.")
	return nil
}

func (a *App) recover(ctx context.Context, _ []string) error {
	rep, err := a.svc.Recover(ctx)
	if rep != nil {
		printlnFn(fmt.Sprintf("Finished %d and rolled back %d interrupted operations.", rep.Committed, rep.Compensated))
	}
	if err != nil {
		return errors.Join(errors.New("some operations are still pending"), err)
	}
	return nil
}
