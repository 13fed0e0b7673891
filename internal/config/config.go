package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"prod"`
	HTTPServer `yaml:"http_server"`
	CRM        `yaml:"crm"`

	// Локальное зеркало (MySQL), не авторитетное
	MirrorDSN string `yaml:"mirror_dsn" env:"MIRROR_DSN"`

	FieldMapPath string `yaml:"field_map_path" env:"FIELD_MAP_PATH" env-default:"./config/field_map.json"`
	TemplatePath string `yaml:"template_path" env:"LPA_TEMPLATE_PATH" env-default:"./templates/lpa_template.docx"`
	OutputDir    string `yaml:"output_dir" env:"LPA_OUTPUT_DIR" env-default:"./out"`
	Timezone     string `yaml:"timezone" env:"LPA_TIMEZONE" env-default:"Europe/Moscow"`

	AdminLogin string `yaml:"admin_login" env:"ADMIN_LOGIN"`
	AdminPass  string `yaml:"admin_pass" env:"ADMIN_PASS"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:4005"`
	Timeout     time.Duration `yaml:"timeout"  env-default:"120s"`
	IdleTimeout time.Duration `yaml:"idle_timeout"  env-default:"60s"`
}

type CRM struct {
	// Вебхук вида https://<host>/rest/<userid>/<token>
	WebhookBase string `yaml:"webhook_base" env:"CRM_WEBHOOK_BASE" env-required:"true"`

	SiteEntityTypeID      int `yaml:"site_entity_type_id" env:"CRM_SITE_ETID" env-default:"1046"`
	ShiftEntityTypeID     int `yaml:"shift_entity_type_id" env:"CRM_SHIFT_ETID" env-default:"1050"`
	ResourceEntityTypeID  int `yaml:"resource_entity_type_id" env:"CRM_RESOURCE_ETID" env-default:"1056"`
	TimesheetEntityTypeID int `yaml:"timesheet_entity_type_id" env:"CRM_TIMESHEET_ETID" env-default:"1060"`

	// Стадия смарт-процесса для закрытой смены
	ClosedStageID int `yaml:"closed_stage_id" env:"CRM_CLOSED_STAGE_ID" env-default:"1"`

	MaxAttempts int           `yaml:"max_attempts" env:"CRM_MAX_ATTEMPTS" env-default:"3"`
	CallTimeout time.Duration `yaml:"call_timeout" env-default:"40s"`
}

func MustConfig() *Config {
	var cfg Config

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/local.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// без yaml живём на одних переменных окружения
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			log.Fatalf("cannot read config from env: %s", err)
		}
		return &cfg
	}

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}

	return &cfg
}

// Location часовой пояс для календарной границы "сегодня".
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
