package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/touchline/academy/core"
	"github.com/touchline/academy/core/user"
)

const userColumns = "id, name, username, email, phone, is_active, password_hash, created_at, updated_at, last_login"

var userOrderings = []string{"name", "username", "email", "is_active", "created_at", "updated_at", "last_login"}

type userRepository struct {
	db core.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DB) *userRepository {
	return &userRepository{db: db}
}

// inTx runs fn in exec when given, in a new transaction otherwise.
func (repo userRepository) inTx(ctx context.Context, exec []core.DBExecutor, fn func(tx core.DBExecutor) error) error {
	if len(exec) > 0 && exec[0] != nil {
		return fn(exec[0])
	}
	return core.RunInTx(ctx, repo.db, fn)
}

func (repo userRepository) saveRoles(ctx context.Context, tx core.DBExecutor, usr user.User) error {
	if _, err := execute(ctx, tx, "DELETE FROM user_roles WHERE user_id = ?", usr.ID); err != nil {
		return errors.Wrap(err, "clearing roles")
	}
	for _, role := range usr.Roles {
		if _, err := execute(ctx, tx, "INSERT INTO user_roles (user_id, role) VALUES (?, ?)", usr.ID, role); err != nil {
			return errors.Wrap(err, "inserting role")
		}
	}
	return nil
}

// loadRoles fills the roles of users in place.
func (repo userRepository) loadRoles(ctx context.Context, exec core.DBExecutor, users []user.User) error {
	if len(users) == 0 {
		return nil
	}
	ids := make([]string, 0, len(users))
	idx := make(map[string]int, len(users))
	for i, u := range users {
		ids = append(ids, u.ID)
		idx[u.ID] = i
		users[i].Roles = []string{}
	}

	var rows []struct {
		UserID string `db:"user_id"`
		Role   string `db:"role"`
	}
	if err := selectAll(ctx, exec, &rows, "SELECT user_id, role FROM user_roles WHERE user_id IN (?) ORDER BY role", ids); err != nil {
		return errors.Wrap(err, "loading roles")
	}
	for _, r := range rows {
		i := idx[r.UserID]
		users[i].Roles = append(users[i].Roles, r.Role)
	}
	return nil
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	var w where
	w.add("((username <> '' AND username = ?) OR (email <> '' AND email = ?))", username, email)
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		w.add("id NOT IN (?)", ids)
	}

	var found []struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	if err := selectAll(ctx, repo.db, &found, "SELECT username, email FROM users"+w.String(), w.args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, u := range found {
		if username != "" && u.Username == username {
			return user.ErrUsernameExists
		}
	}
	if len(found) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		usr.ID = core.NewID()
	}
	err := repo.inTx(ctx, exec, func(tx core.DBExecutor) error {
		q := "INSERT INTO users (" + userColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
		_, err := execute(ctx, tx, q,
			usr.ID, usr.Name, usr.Username, usr.Email, usr.Phone, usr.IsActive, usr.PasswordHash,
			usr.CreatedAt, usr.UpdatedAt, usr.LastLogin)
		if err != nil {
			return errors.Wrap(err, "inserting user")
		}
		return repo.saveRoles(ctx, tx, usr)
	})
	if err != nil {
		return user.User{}, err
	}
	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	return usr, nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, orderings []core.DBOrdering) ([]user.User, error) {
	var w where
	if filter != nil {
		w.search(filter.Search, "name", "username", "email")
		// users with any role that starts with any of the given roles
		if len(filter.Roles) > 0 {
			conds := ""
			for i, role := range filter.Roles {
				if i > 0 {
					conds += " OR "
				}
				conds += "ur.role LIKE ?"
				w.args = append(w.args, role+"%")
			}
			w.conds = append(w.conds, "EXISTS (SELECT 1 FROM user_roles ur WHERE ur.user_id = users.id AND ("+conds+"))")
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			w.add("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			w.add("created_at <= ?", filter.CreatedTo.UTC())
		}
	}

	q := "SELECT " + userColumns + " FROM users" + w.String() + core.OrderByClause(orderings, userOrderings, "name ASC")
	users := make([]user.User, 0)
	if err := selectAll(ctx, repo.db, &users, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	if err := repo.loadRoles(ctx, repo.db, users); err != nil {
		return nil, err
	}
	return users, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var w where
	switch {
	case filter.ID != "":
		if !core.IsValidID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		w.add("id = ?", filter.ID)
	case filter.Email != "":
		w.add("email = ?", filter.Email)
	case len(filter.UsernameOrEmail) > 0:
		w.add("(username IN (?) OR email IN (?))", filter.UsernameOrEmail, filter.UsernameOrEmail)
	default:
		return user.User{}, user.ErrNotFound
	}

	exe := core.PickExecutor(repo.db, exec...)
	var usr user.User
	if err := get(ctx, exe, &usr, "SELECT "+userColumns+" FROM users"+w.String()+" LIMIT 1", w.args...); err != nil {
		return user.User{}, trapNoRows(err, user.ErrNotFound, "finding user")
	}
	users := []user.User{usr}
	if err := repo.loadRoles(ctx, exe, users); err != nil {
		return user.User{}, err
	}
	return users[0], nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	err := repo.inTx(ctx, exec, func(tx core.DBExecutor) error {
		q := `UPDATE users SET name = ?, username = ?, email = ?, phone = ?, is_active = ?, password_hash = ?,
			updated_at = ?, last_login = ? WHERE id = ?`
		n, err := execute(ctx, tx, q,
			usr.Name, usr.Username, usr.Email, usr.Phone, usr.IsActive, usr.PasswordHash,
			usr.UpdatedAt, usr.LastLogin, usr.ID)
		if err != nil {
			return errors.Wrap(err, "updating user")
		}
		if n == 0 {
			return user.ErrNotFound
		}
		return repo.saveRoles(ctx, tx, usr)
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr)
	}
	return repo.UpdateUser(ctx, usr)
}

func (repo userRepository) DeleteUsers(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := execute(ctx, repo.db, "DELETE FROM users WHERE id IN (?)", ids); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}

func (repo userRepository) CountUsers(ctx context.Context, rolePrefix string) (int, error) {
	var w where
	if rolePrefix != "" {
		w.add("EXISTS (SELECT 1 FROM user_roles ur WHERE ur.user_id = users.id AND ur.role LIKE ?)", rolePrefix+"%")
	}
	var n int
	if err := get(ctx, repo.db, &n, "SELECT COUNT(*) FROM users"+w.String(), w.args...); err != nil {
		return 0, errors.Wrap(err, "counting users")
	}
	return n, nil
}
