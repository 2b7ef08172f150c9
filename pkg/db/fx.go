package db

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/rentbill/internal/config"
	obslogger "github.com/smallbiznis/rentbill/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	gormprometheus "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(ConfigFromApp),
	fx.Provide(Open),
)

type Params struct {
	fx.In

	Lc     fx.Lifecycle
	Config Config
	App    config.Config
	Log    *zap.Logger
}

// Open connects gorm, applies pool limits and installs the tracing and metrics plugins.
func Open(p Params) (*gorm.DB, error) {
	dialector, err := Dialect(p.Config)
	if err != nil {
		return nil, err
	}

	level := gormlogger.Warn
	if !p.App.IsProduction() {
		level = gormlogger.Info
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         obslogger.NewGormLogger(p.Log, level, 200*time.Millisecond),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p.Config.Type, err)
	}

	if err := conn.Use(otelgorm.NewPlugin(otelgorm.WithDBName(p.Config.Name))); err != nil {
		return nil, err
	}
	if err := conn.Use(gormprometheus.New(gormprometheus.Config{
		DBName:          p.Config.Name,
		RefreshInterval: 15,
		StartServer:     false,
		Labels:          map[string]string{"service": p.App.AppName},
	})); err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if p.Config.MaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(p.Config.MaxIdleConn)
	}
	if p.Config.MaxOpenConn > 0 {
		sqlDB.SetMaxOpenConns(p.Config.MaxOpenConn)
	}
	if p.Config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(p.Config.ConnMaxLifetime) * time.Second)
	}
	if p.Config.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(p.Config.ConnMaxIdleTime) * time.Second)
	}
	if p.Config.Type == DialectSQLite {
		// sqlite serialises writers; one connection avoids "database is locked" churn
		sqlDB.SetMaxOpenConns(1)
	}

	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return sqlDB.PingContext(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return sqlDB.Close()
		},
	})

	p.Log.Named("db").Info("database configured",
		zap.String("type", p.Config.Type),
		zap.String("host", p.Config.Host),
		zap.String("name", p.Config.Name),
	)
	return conn, nil
}
