package db

import (
	"fmt"
	"net"
	"time"

	"geojournal/config"
	"geojournal/logger"
	"geojournal/model"

	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormDB is the process-wide GORM connection.
var GormDB *gorm.DB

// DSN builds the MySQL data source name from configuration.
func DSN(cfg *config.Config) string {
	mc := mysql.NewConfig()
	mc.User = cfg.DBUser
	mc.Passwd = cfg.DBPassword
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.DBHost, cfg.DBPort)
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

// ConnectGormDB opens the database and configures the pool.
func ConnectGormDB(cfg *config.Config) error {
	logLevel := gormlogger.Warn
	if cfg.LogLevel == "debug" {
		logLevel = gormlogger.Info
	}

	var err error
	GormDB, err = gorm.Open(gormmysql.Open(DSN(cfg)), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(logLevel),
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return fmt.Errorf("failed to open %s@%s/%s: %w", cfg.DBUser, net.JoinHostPort(cfg.DBHost, cfg.DBPort), cfg.DBName, err)
	}

	sqlDB, err := GormDB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("connected to MySQL",
		logger.String("addr", net.JoinHostPort(cfg.DBHost, cfg.DBPort)),
		logger.String("database", cfg.DBName))
	return nil
}

// CloseGormDB closes the connection pool.
func CloseGormDB() error {
	if GormDB == nil {
		return nil
	}

	sqlDB, err := GormDB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// InitSchema creates or updates the tables the journal needs.
func InitSchema() error {
	if GormDB == nil {
		return fmt.Errorf("GORM database not initialized")
	}

	if err := GormDB.AutoMigrate(&model.Entry{}); err != nil {
		return fmt.Errorf("failed to auto migrate models: %w", err)
	}

	logger.Debug("schema migrated", logger.String("table", model.Entry{}.TableName()))
	return nil
}
