package main

import (
	"database/sql"
	"fmt"
	"log"
	"net/url"

	_ "github.com/go-sql-driver/mysql"

	"cordchat/internal/config"
	database "cordchat/internal/server/db"
)

// dbinit 开发辅助工具：确保数据库存在并按 models 自动迁移表结构
func main() {
	cfg, err := config.LoadDefault()
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	if cfg.Database.User == "" {
		log.Fatalf("数据库用户未配置")
	}
	if cfg.Database.Password == "" {
		log.Println("提示: 配置中的 password 为空，请在 internal/config/config.yaml 填写你的密码")
	}

	// 建库阶段仅支持 mysql；postgres 通常由部署侧预建数据库
	if cfg.Database.Driver == "mysql" {
		ensureMySQLDatabase(cfg.Database)
	} else {
		log.Printf("驱动 %s 跳过建库步骤，假定数据库已存在", cfg.Database.Driver)
	}

	// 使用 GORM 连接目标数据库并自动迁移
	gormDB, err := database.OpenGorm(cfg.Database)
	if err != nil {
		log.Fatalf("GORM 连接数据库失败: %v", err)
	}
	if err := database.Migrate(gormDB); err != nil {
		log.Fatalf("AutoMigrate 失败: %v", err)
	}
	log.Println("AutoMigrate 完成，数据库结构已根据 models 创建/更新")
}

func ensureMySQLDatabase(d config.Database) {
	serverDSN := buildServerDSN(d)
	dbServer, err := sql.Open("mysql", serverDSN)
	if err != nil {
		log.Fatalf("连接到 MySQL 服务器失败: %v", err)
	}
	defer dbServer.Close()
	if err := dbServer.Ping(); err != nil {
		log.Fatalf("MySQL 服务器不可用: %v", err)
	}
	log.Println("已连接到 MySQL 服务器")

	var exists int
	if err := dbServer.QueryRow(
		"SELECT COUNT(*) FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?",
		d.Name,
	).Scan(&exists); err != nil {
		log.Fatalf("检查数据库存在性失败: %v", err)
	}
	if exists == 0 {
		createStmt := fmt.Sprintf(
			"CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET utf8mb4 COLLATE utf8mb4_general_ci",
			d.Name,
		)
		if _, err := dbServer.Exec(createStmt); err != nil {
			log.Fatalf("创建数据库失败: %v", err)
		}
		log.Printf("数据库 %s 不存在，已创建成功", d.Name)
	} else {
		log.Printf("数据库 %s 已存在", d.Name)
	}
}

// buildServerDSN 连接到服务器级（不选库），用于建库
func buildServerDSN(d config.Database) string {
	params := url.Values{}
	if d.Params == nil {
		d.Params = map[string]string{}
	}
	if _, ok := d.Params["parseTime"]; !ok {
		params.Set("parseTime", "true")
	}
	if _, ok := d.Params["loc"]; !ok {
		params.Set("loc", "Local")
	}
	if _, ok := d.Params["charset"]; !ok {
		params.Set("charset", "utf8mb4")
	}
	for k, v := range d.Params {
		params.Set(k, v)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/?%s", d.User, d.Password, d.Host, d.Port, params.Encode())
}
