package bootstrap

import (
	"io"
	"os"
	"path/filepath"

	"github.com/yuqie6/ecopulse/internal/eventbus"
	"github.com/yuqie6/ecopulse/internal/importer"
	"github.com/yuqie6/ecopulse/internal/pkg/config"
	"github.com/yuqie6/ecopulse/internal/repository"
	"github.com/yuqie6/ecopulse/internal/service"
)

// Core 持有跨命令共享的核心依赖
type Core struct {
	Cfg       *config.Config
	DB        *repository.Database
	LogCloser io.Closer
	Hub       *eventbus.Hub
	Store     *repository.DocumentStore

	Repos struct {
		Profile   *repository.ProfileRepository
		Logs      *repository.CommuteLogRepository
		Settings  *repository.SettingsRepository
		Community *repository.CommunityRepository
	}

	Services struct {
		Commute *service.CommuteService
	}

	Importer *importer.Importer
}

// NewCore 构建核心依赖（不启动监听）
func NewCore(cfgPath string) (*Core, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logCloser, _ := config.SetupLogger(config.LoggerOptions{
		Level:     cfg.App.LogLevel,
		Path:      cfg.App.LogPath,
		Component: filepath.Base(os.Args[0]),
	})

	db, err := repository.NewDatabase(cfg.Storage.DBPath)
	if err != nil {
		if logCloser != nil {
			_ = logCloser.Close()
		}
		return nil, err
	}

	c := &Core{Cfg: cfg, DB: db, LogCloser: logCloser}
	c.Hub = eventbus.NewHub()
	c.Store = repository.NewDocumentStore(db.DB)

	// Repos
	c.Repos.Profile = repository.NewProfileRepository(c.Store)
	c.Repos.Logs = repository.NewCommuteLogRepository(c.Store)
	c.Repos.Settings = repository.NewSettingsRepository(c.Store)
	c.Repos.Community = repository.NewCommunityRepository(c.Store)

	// Services
	c.Services.Commute = service.NewCommuteService(
		c.Repos.Profile,
		c.Repos.Logs,
		c.Repos.Settings,
		c.Repos.Community,
		c.Hub,
	)

	c.Importer = importer.NewImporter(c.Repos.Logs, c.Repos.Community, c.Hub)

	return c, nil
}

// Close 关闭核心依赖资源
func (c *Core) Close() error {
	if c == nil {
		return nil
	}
	var dbErr error
	if c.DB != nil {
		dbErr = c.DB.Close()
	}
	if c.LogCloser != nil {
		_ = c.LogCloser.Close()
	}
	return dbErr
}
