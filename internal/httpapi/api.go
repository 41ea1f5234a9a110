package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/yuqie6/ecopulse/internal/dto"
	"github.com/yuqie6/ecopulse/internal/service"
)

// registerJSONRoutes 注册只读 JSON 路由
// 写入操作走 CLI，HTTP 侧只提供视图
func (a *apiServer) registerJSONRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", a.wrapGET(a.getStatus))
	mux.HandleFunc("/api/dashboard", a.wrapGET(a.getDashboard))
	mux.HandleFunc("/api/leaderboard", a.wrapGET(a.getLeaderboard))
	mux.HandleFunc("/api/community", a.wrapGET(a.getCommunity))
	mux.HandleFunc("/api/settings", a.wrapGET(a.getSettings))
}

func (a *apiServer) wrapGET(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		fn(w, r)
	}
}

func (a *apiServer) getStatus(w http.ResponseWriter, r *http.Request) {
	if a.core == nil || a.core.DB == nil {
		writeError(w, http.StatusBadRequest, "数据库未初始化")
		return
	}

	keys, err := a.core.Store.Keys(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	session := dto.SessionStatusDTO{}
	if profile := a.core.Services.Commute.ActiveProfile(r.Context()); profile != nil {
		session.Registered = true
		session.UserID = profile.ID
		session.UserName = profile.Name
	}

	writeJSON(w, http.StatusOK, &dto.StatusDTO{
		App: dto.AppStatusDTO{
			Name:       a.core.Cfg.App.Name,
			Version:    a.core.Cfg.App.Version,
			StartedAt:  a.startTime.Format(time.RFC3339),
			UptimeSec:  int64(time.Since(a.startTime).Seconds()),
			ConfigPath: a.cfgPath,
		},
		Storage: dto.StorageStatusDTO{
			DBPath:         a.core.Cfg.Storage.DBPath,
			SchemaVersion:  a.core.DB.SchemaVersion,
			SafeMode:       a.core.DB.SafeMode,
			SafeModeReason: a.core.DB.MigrationError,
		},
		Session:   session,
		Documents: keys,
	})
}

func (a *apiServer) getDashboard(w http.ResponseWriter, r *http.Request) {
	view, err := a.core.Services.Commute.Dashboard(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrNoActiveUser) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *apiServer) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	filter := service.ParseTimeFilter(strings.TrimSpace(r.URL.Query().Get("filter")))
	entries, self := a.core.Services.Commute.Leaderboard(r.Context(), filter)

	out := &dto.LeaderboardDTO{
		Filter:  string(filter),
		Entries: make([]dto.LeaderboardEntryDTO, 0, len(entries)),
	}
	for _, e := range entries {
		out.Entries = append(out.Entries, dto.LeaderboardEntryDTO{
			UserID:        e.UserID,
			UserName:      e.UserName,
			TotalCO2Saved: e.TotalCO2Saved,
			TripCount:     e.TripCount,
			Rank:          e.Rank,
		})
	}
	if self != nil {
		out.Self = &dto.LeaderboardEntryDTO{
			UserID:        self.UserID,
			UserName:      self.UserName,
			TotalCO2Saved: self.TotalCO2Saved,
			TripCount:     self.TripCount,
			Rank:          self.Rank,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *apiServer) getCommunity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.core.Services.Commute.CommunityStats(r.Context()))
}

func (a *apiServer) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.core.Services.Commute.Settings(r.Context()))
}
