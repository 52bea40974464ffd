package db

import (
	"fmt"
	"net/url"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"cordchat/internal/config"
	"cordchat/internal/models"
)

// DSN 构造适用于 GORM 的数据库连接串
func DSN(d config.Database) (string, error) {
	switch d.Driver {
	case "mysql":
		v := url.Values{}
		// 默认参数
		if _, ok := d.Params["parseTime"]; !ok {
			v.Set("parseTime", "true")
		}
		if _, ok := d.Params["loc"]; !ok {
			v.Set("loc", "Local")
		}
		if _, ok := d.Params["charset"]; !ok {
			v.Set("charset", "utf8mb4")
		}
		for k, val := range d.Params {
			v.Set(k, val)
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s", d.User, d.Password, d.Host, d.Port, d.Name, v.Encode()), nil
	case "postgres":
		v := url.Values{}
		if _, ok := d.Params["sslmode"]; !ok {
			v.Set("sslmode", "disable")
		}
		for k, val := range d.Params {
			v.Set(k, val)
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(d.User, d.Password),
			Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
			Path:     d.Name,
			RawQuery: v.Encode(),
		}
		return u.String(), nil
	default:
		return "", fmt.Errorf("unsupported driver: %s", d.Driver)
	}
}

// OpenGorm 使用 GORM 打开数据库连接
func OpenGorm(d config.Database) (*gorm.DB, error) {
	dsn, err := DSN(d)
	if err != nil {
		return nil, err
	}
	switch d.Driver {
	case "mysql":
		return gorm.Open(mysql.Open(dsn), &gorm.Config{})
	case "postgres":
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	default:
		return nil, fmt.Errorf("unsupported driver: %s", d.Driver)
	}
}

// Migrate 按 internal/models 自动迁移所有表
func Migrate(g *gorm.DB) error {
	return g.AutoMigrate(
		&models.User{},
		&models.AuthSession{},
		&models.FriendRequest{},
		&models.Friendship{},
		&models.Room{},
		&models.Server{},
		&models.ServerMember{},
		&models.ServerInvite{},
		&models.Channel{},
		&models.Message{},
		&models.DM{},
		&models.DMParticipant{},
		&models.DMMessage{},
	)
}
