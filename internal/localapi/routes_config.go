package localapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"tokentrim/cli/internal/global"
	"tokentrim/cli/internal/session"
)

type configResponse struct {
	APIBaseURL  string                `json:"api_base_url"`
	LocalPort   int                   `json:"local_port"`
	DownloadDir string                `json:"download_dir"`
	Export      exportDefaultsPayload `json:"export"`
}

type exportDefaultsPayload struct {
	Mode           string `json:"mode"`
	FilenamePrefix string `json:"filename_prefix"`
}

func buildConfigResponse(cfg global.GlobalConfig) configResponse {
	return configResponse{
		APIBaseURL:  cfg.APIBaseURL,
		LocalPort:   cfg.LocalPort,
		DownloadDir: cfg.DownloadDir,
		Export: exportDefaultsPayload{
			Mode:           cfg.Export.Mode,
			FilenamePrefix: cfg.Export.FilenamePrefix,
		},
	}
}

func (s *Server) registerConfigRoutes() {
	s.mux.HandleFunc("/api/v1/config", s.handleConfig)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cfg, err := s.deps.ConfigStore.LoadOrInit()
		if err != nil {
			respondError(w, http.StatusInternalServerError, "CONFIG_LOAD_FAILED", err.Error())
			return
		}
		respondOK(w, buildConfigResponse(cfg))
	case http.MethodPatch:
		var req struct {
			APIBaseURL  *string `json:"api_base_url"`
			LocalPort   *int    `json:"local_port"`
			DownloadDir *string `json:"download_dir"`
			Export      *struct {
				Mode           *string `json:"mode"`
				FilenamePrefix *string `json:"filename_prefix"`
			} `json:"export"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
			return
		}
		cfg, err := s.deps.ConfigStore.LoadOrInit()
		if err != nil {
			respondError(w, http.StatusInternalServerError, "CONFIG_LOAD_FAILED", err.Error())
			return
		}
		if req.APIBaseURL != nil {
			cfg.APIBaseURL = strings.TrimSpace(*req.APIBaseURL)
		}
		if req.LocalPort != nil {
			cfg.LocalPort = *req.LocalPort
		}
		if req.DownloadDir != nil {
			cfg.DownloadDir = strings.TrimSpace(*req.DownloadDir)
		}
		if req.Export != nil {
			if req.Export.Mode != nil {
				mode := strings.TrimSpace(*req.Export.Mode)
				if mode != "" && !session.ValidExportMode(mode) {
					respondError(w, http.StatusBadRequest, "INVALID_EXPORT_MODE", "mode must be raw, compressed, no-extension or with-extension")
					return
				}
				cfg.Export.Mode = mode
			}
			if req.Export.FilenamePrefix != nil {
				cfg.Export.FilenamePrefix = strings.TrimSpace(*req.Export.FilenamePrefix)
			}
		}
		if err := s.deps.ConfigStore.Save(cfg); err != nil {
			respondError(w, http.StatusInternalServerError, "CONFIG_SAVE_FAILED", err.Error())
			return
		}
		respondOK(w, buildConfigResponse(cfg))
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	}
}
