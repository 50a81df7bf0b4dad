package content

import (
	"os"

	"github.com/pkg/errors"
	"github.com/valyala/fasttemplate"
	"gopkg.in/yaml.v3"
)

// Copy has all the user facing texts of the catalog.
type Copy struct {
	App     AppCopy     `yaml:"app"`
	Header  HeaderCopy  `yaml:"header"`
	Metrics MetricsCopy `yaml:"metrics"`
	Catalog CatalogCopy `yaml:"catalog"`
	Tester  TesterCopy  `yaml:"tester"`
}

// AppCopy are the global texts.
type AppCopy struct {
	Title         string `yaml:"title"`
	AnonymousUser string `yaml:"anonymousUser"`
}

// HeaderCopy are the catalog header texts.
type HeaderCopy struct {
	MicrofrontLabel string `yaml:"microfrontLabel"`
	OperatorLabel   string `yaml:"operatorLabel"`
	RemoteLabel     string `yaml:"remoteLabel"`
	ModuleLabel     string `yaml:"moduleLabel"`
	NotifyCTA       string `yaml:"notifyCta"`
	NotifyTitle     string `yaml:"notifyTitle"`
	NotifyBody      string `yaml:"notifyBody"`
}

// MetricsCopy are the metrics panel texts. Description is a template,
// `{{seconds}}` is replaced with the refresh interval.
type MetricsCopy struct {
	Subtitle      string `yaml:"subtitle"`
	Title         string `yaml:"title"`
	Description   string `yaml:"description"`
	SeriesMissing string `yaml:"seriesMissing"`
	LastLabel     string `yaml:"lastLabel"`
	Loading       string `yaml:"loading"`
}

// CatalogCopy are the product grid texts.
type CatalogCopy struct {
	Title      string `yaml:"title"`
	StockLabel string `yaml:"stockLabel"`
	OutOfStock string `yaml:"outOfStock"`
}

// TesterCopy are the setup screen texts shown with an invalid config.
type TesterCopy struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	TokenLabel  string `yaml:"tokenLabel"`
	UserIDLabel string `yaml:"userIdLabel"`
	UserLabel   string `yaml:"userLabel"`
	ApplyCTA    string `yaml:"applyCta"`
	ResetCTA    string `yaml:"resetCta"`
}

// Default returns the default texts.
func Default() Copy {
	return Copy{
		App: AppCopy{
			Title:         "Catálogo",
			AnonymousUser: "Invitado",
		},
		Header: HeaderCopy{
			MicrofrontLabel: "Microfrontend",
			OperatorLabel:   "Operador",
			RemoteLabel:     "Remoto",
			ModuleLabel:     "Módulo",
			NotifyCTA:       "Notificar al host",
			NotifyTitle:     "Catálogo",
			NotifyBody:      "El catálogo está operativo.",
		},
		Metrics: MetricsCopy{
			Subtitle:      "Métricas en vivo",
			Title:         "Actividad del catálogo",
			Description:   "Datos del API, se actualizan cada {{seconds}}s.",
			SeriesMissing: "No hay series disponibles.",
			LastLabel:     "Último",
			Loading:       "Cargando métricas…",
		},
		Catalog: CatalogCopy{
			Title:      "Productos",
			StockLabel: "Stock",
			OutOfStock: "Sin stock",
		},
		Tester: TesterCopy{
			Title:       "Configuración requerida",
			Description: "El host no entregó una configuración válida. Ingresa un token para probar el microfrontend.",
			TokenLabel:  "Token",
			UserIDLabel: "ID de usuario",
			UserLabel:   "Nombre de usuario",
			ApplyCTA:    "Aplicar",
			ResetCTA:    "Restablecer",
		},
	}
}

// Load returns the default texts overridden with the ones in the YAML
// file at path. Missing keys keep their default.
func Load(path string) (Copy, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, errors.Wrapf(err, "could not read copy file %q", path)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, errors.Wrapf(err, "could not parse copy file %q", path)
	}
	return c, nil
}

// Format replaces the `{{key}}` tags of the text with the values.
// Unknown tags are replaced with an empty string.
func Format(text string, values map[string]string) string {
	m := make(map[string]interface{}, len(values))
	for k, v := range values {
		m[k] = v
	}
	return fasttemplate.ExecuteString(text, "{{", "}}", m)
}
