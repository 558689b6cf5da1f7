package reports

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"crowdwatch/internal/api"
	"crowdwatch/internal/auth"
	"crowdwatch/internal/realtime"
	"crowdwatch/internal/uploads"
)

const (
	statsPrefix     = "admin:stats:"
	statsVersionKey = "admin:stats:version"
)

var nowUTC = func() time.Time { return time.Now().UTC() }

// Directory looks up the accounts reports point at. auth.Store satisfies it.
type Directory interface {
	GetByID(ctx context.Context, id string) (*auth.User, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*auth.User, error)
}

// Cache holds the admin stats between mutations. cache.Store satisfies it.
type Cache interface {
	Load(ctx context.Context, key string, dst any) (bool, error)
	Save(ctx context.Context, key string, v any, ttl time.Duration) error
	Drop(ctx context.Context, key string) error
}

// Common carries the collaborators shared by the user and admin handlers.
type Common struct {
	Store     Store
	Directory Directory
	Uploads   uploads.Store
	Publisher realtime.Publisher
	Cache     Cache
	StatsTTL  time.Duration
	Logger    logrus.FieldLogger
}

// populate fills User and AssignedAdminUser with one directory lookup.
func (c *Common) populate(ctx context.Context, rs []Report) error {
	seen := map[string]struct{}{}
	var ids []string
	add := func(id string) {
		if _, ok := seen[id]; !ok && id != "" {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for i := range rs {
		add(rs[i].UserID)
		if rs[i].AssignedAdmin != nil {
			add(*rs[i].AssignedAdmin)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	users, err := c.Directory.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for i := range rs {
		r := &rs[i]
		if u, ok := users[r.UserID]; ok {
			r.User = &UserRef{ID: u.ID, Username: u.Username, Email: u.Email}
		}
		if r.AssignedAdmin != nil {
			if u, ok := users[*r.AssignedAdmin]; ok {
				r.AssignedAdminUser = &UserRef{ID: u.ID, Username: u.Username}
			}
		}
	}
	return nil
}

// populateOne fills the references of a single report. Lookup failures are logged, not returned.
func (c *Common) populateOne(ctx context.Context, r *Report) {
	rs := []Report{*r}
	if err := c.populate(ctx, rs); err != nil {
		c.Logger.WithError(err).WithField("report_id", r.ID).Warn("populate report")
		return
	}
	*r = rs[0]
}

// statsKey names the stats entry for the current cache version. A computation
// that races a mutation saves under the old version, which nobody reads again.
func (c *Common) statsKey(ctx context.Context) string {
	var version string
	if _, err := c.Cache.Load(ctx, statsVersionKey, &version); err != nil {
		c.Logger.WithError(err).Warn("load stats version")
	}
	if version == "" {
		version = "0"
	}
	return statsPrefix + version
}

// changed invalidates the cached stats and tells connected dashboards. Neither failure fails the request.
func (c *Common) changed(ctx context.Context, event string, data any) {
	if c.Cache != nil {
		stale := c.statsKey(ctx)
		if err := c.Cache.Save(ctx, statsVersionKey, uuid.NewString(), 0); err != nil {
			c.Logger.WithError(err).Warn("bump stats version")
		}
		if err := c.Cache.Drop(ctx, stale); err != nil {
			c.Logger.WithError(err).Warn("drop stats cache")
		}
	}
	if c.Publisher != nil {
		if err := c.Publisher.Publish(ctx, realtime.Event{Type: event, Data: data}); err != nil {
			c.Logger.WithError(err).WithField("event", event).Warn("publish event")
		}
	}
}

func (c *Common) removePhoto(ctx context.Context, r *Report) {
	if c.Uploads == nil || r.PhotoURL == "" {
		return
	}
	if err := c.Uploads.Remove(ctx, r.PhotoURL); err != nil {
		c.Logger.WithError(err).WithField("photo", r.PhotoURL).Warn("remove photo")
	}
}

func respondReport(w http.ResponseWriter, status int, message string, r *Report) {
	body := map[string]any{"success": true, "report": r}
	if message != "" {
		body["message"] = message
	}
	api.WriteJSON(w, status, body)
}

func (c *Common) respondList(ctx context.Context, w http.ResponseWriter, f ListFilter, rs []Report, total int64) {
	if err := c.populate(ctx, rs); err != nil {
		c.Logger.WithError(err).Warn("populate reports")
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"reports":    rs,
		"pagination": NewPagination(f.Page, f.Limit, total),
	})
}

func notFound(w http.ResponseWriter) {
	api.Error(w, http.StatusNotFound, "Report not found")
}

func reportID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
