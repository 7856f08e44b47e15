package configuration

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config verwaltet die Anwendungskonfiguration
type Config struct {
	settings map[string]map[string]string
	filePath string
	mu       sync.RWMutex
}

var (
	globalConfig *Config
	once         sync.Once
)

// sectionOrder legt die Reihenfolge der Sektionen beim Speichern fest
var sectionOrder = []string{"Interpreter", "Server", "Network", "Storage", "Security", "JWT", "TLS", "Debug"}

// Initialize initialisiert die globale Konfiguration
func Initialize(configPath string) error {
	var err error
	once.Do(func() {
		globalConfig, err = loadConfig(configPath)
		if err != nil {
			return
		}
		// Versuche zusätzlich settings.local.cfg neben der Hauptdatei zu laden
		localConfigPath := filepath.Join(filepath.Dir(configPath), "settings.local.cfg")
		if _, statErr := os.Stat(localConfigPath); statErr == nil {
			if localErr := globalConfig.loadLocalConfig(localConfigPath); localErr != nil {
				err = fmt.Errorf("failed to load %s: %w", localConfigPath, localErr)
			}
		}
	})
	return err
}

// loadConfig lädt die Konfiguration aus einer Datei
func loadConfig(filePath string) (*Config, error) {
	config := &Config{
		settings: make(map[string]map[string]string),
		filePath: filePath,
	}
	// Prüfe, ob die Datei existiert
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		config.createDefaultConfig()
		if err := config.saveToFile(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return config, nil
	}

	// Lade existierende Konfiguration
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if err := config.parse(file); err != nil {
		return nil, err
	}
	return config, nil
}

// loadLocalConfig lädt lokale Konfigurationsüberschreibungen
func (c *Config) loadLocalConfig(filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.parse(file)
}

// parse liest INI-Zeilen; spätere Werte überschreiben frühere.
func (c *Config) parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	currentSection := ""

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Überspringe leere Zeilen und Kommentare
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}

		// Sektion
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			currentSection = strings.TrimSpace(line[1 : len(line)-1])
			if c.settings[currentSection] == nil {
				c.settings[currentSection] = make(map[string]string)
			}
			continue
		}

		// Key-Value Pair
		if key, value, ok := strings.Cut(line, "="); ok && currentSection != "" {
			c.settings[currentSection][strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}
	return scanner.Err()
}

// createDefaultConfig erstellt die Standard-Konfiguration mit nur den verwendeten Parametern
func (c *Config) createDefaultConfig() {
	// [Interpreter] Sektion
	c.settings["Interpreter"] = map[string]string{
		"max_gosub_depth": "100",
		"max_for_depth":   "200",
		"sqr_mode":        "square",
		"rnd_seed":        "0",
		"banner":          "",
	}

	// [Server] Sektion
	c.settings["Server"] = map[string]string{
		"listen_addr":    ":8080",
		"enable_console": "false",
		"static_dir":     "",
	}

	// [Network] Sektion
	c.settings["Network"] = map[string]string{
		"pong_timeout":        "90s",
		"write_wait_timeout":  "10s",
		"max_message_size_kb": "64",
		"max_channel_buffer":  "1000",
		"input_queue_size":    "64",
	}

	// [Storage] Sektion
	c.settings["Storage"] = map[string]string{
		"enable_persistence": "false",
		"db_path":            "retrobasic.db",
	}

	// [Security] Sektion
	c.settings["Security"] = map[string]string{
		"access_password_hash":     "",
		"max_input_length":         "1024",
		"max_sessions":             "50",
		"max_inactive_time":        "30m",
		"session_cleanup_interval": "5m",
	}

	// [JWT] Sektion
	c.settings["JWT"] = map[string]string{
		"secret_key":             "",
		"token_expiration_hours": "24",
	}

	// [TLS] Sektion
	c.settings["TLS"] = map[string]string{
		"enable_tls":           "false",
		"enable_letsencrypt":   "false",
		"domain":               "",
		"letsencrypt_email":    "",
		"force_https_redirect": "false",
		"cert_cache_dir":       "certs",
		"cert_file":            "",
		"key_file":             "",
		"https_port":           "443",
		"http_port":            "80",
	}

	// [Debug] Sektion
	c.settings["Debug"] = map[string]string{
		"enable_debug_logging": "true",
		"log_level":            "INFO",
		"log_file":             "retrobasic.log",
		"max_log_size_mb":      "10",
		"log_rotation_count":   "3",
		// Selektive Logging-Bereiche
		"log_interpreter": "false",
		"log_program":     "false",
		"log_websocket":   "false",
		"log_terminal":    "false",
		"log_session":     "true",
		"log_auth":        "true",
		"log_database":    "false",
		"log_console":     "false",
		"log_config":      "true",
		"log_tls":         "true",
		"log_general":     "true",
	}
}

// saveToFile speichert die aktuelle Konfiguration in die Datei
func (c *Config) saveToFile() error {
	// Erstelle Verzeichnis falls es nicht existiert
	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	file, err := os.Create(c.filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	c.writeTo(w)
	return w.Flush()
}

// writeTo schreibt alle Sektionen, bekannte zuerst, Schlüssel sortiert.
func (c *Config) writeTo(w io.Writer) {
	// Schreibe Header
	fmt.Fprint(w, "; RetroBASIC Configuration File\n")
	fmt.Fprint(w, "; Generated automatically - modify with care\n")
	fmt.Fprint(w, ";\n\n")

	sections := append([]string(nil), sectionOrder...)
	var extra []string
	for name := range c.settings {
		known := false
		for _, s := range sectionOrder {
			if s == name {
				known = true
				break
			}
		}
		if !known {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	sections = append(sections, extra...)

	for _, section := range sections {
		settings, exists := c.settings[section]
		if !exists {
			continue
		}
		fmt.Fprintf(w, "[%s]\n", section)

		keys := make([]string, 0, len(settings))
		for key := range settings {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(w, "%s = %s\n", key, settings[key])
		}
		fmt.Fprint(w, "\n")
	}
}

// GetString gibt einen String-Wert aus der Konfiguration zurück
func GetString(section, key, defaultValue string) string {
	if globalConfig == nil {
		return defaultValue
	}

	globalConfig.mu.RLock()
	defer globalConfig.mu.RUnlock()

	if sectionMap, exists := globalConfig.settings[section]; exists {
		if value, exists := sectionMap[key]; exists {
			return value
		}
	}

	return defaultValue
}

// GetInt gibt einen Integer-Wert aus der Konfiguration zurück
func GetInt(section, key string, defaultValue int) int {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}

	if value, err := strconv.Atoi(str); err == nil {
		return value
	}

	return defaultValue
}

// GetBool gibt einen Boolean-Wert aus der Konfiguration zurück
func GetBool(section, key string, defaultValue bool) bool {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}

	if value, err := strconv.ParseBool(str); err == nil {
		return value
	}

	return defaultValue
}

// GetDuration gibt einen Duration-Wert aus der Konfiguration zurück
func GetDuration(section, key string, defaultValue time.Duration) time.Duration {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}

	if value, err := time.ParseDuration(str); err == nil {
		return value
	}

	return defaultValue
}

// GetSection returns all key-value pairs from a configuration section
func GetSection(sectionName string) map[string]string {
	if globalConfig == nil {
		return make(map[string]string)
	}

	globalConfig.mu.RLock()
	defer globalConfig.mu.RUnlock()

	// Return a copy to prevent external modifications
	result := make(map[string]string)
	for key, value := range globalConfig.settings[sectionName] {
		result[key] = value
	}
	return result
}

// SetString setzt einen String-Wert in der Konfiguration
func SetString(section, key, value string) {
	if globalConfig == nil {
		return
	}

	globalConfig.mu.Lock()
	defer globalConfig.mu.Unlock()

	if globalConfig.settings[section] == nil {
		globalConfig.settings[section] = make(map[string]string)
	}

	globalConfig.settings[section][key] = value
}

// Save speichert die aktuelle Konfiguration in die Datei
func Save() error {
	if globalConfig == nil {
		return fmt.Errorf("configuration not initialized")
	}

	globalConfig.mu.RLock()
	defer globalConfig.mu.RUnlock()

	return globalConfig.saveToFile()
}
