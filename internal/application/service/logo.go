package service

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/tamima/evoucher/internal/voucher"
)

// LogoMode selects where the logo of a run comes from
type LogoMode string

const (
	LogoDefault LogoMode = "default"
	LogoCustom  LogoMode = "custom"
	LogoNone    LogoMode = "none"
)

// ParseLogoMode accepts the mode names case-insensitively; empty means default
func ParseLogoMode(s string) (LogoMode, error) {
	switch m := LogoMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return LogoDefault, nil
	case LogoDefault, LogoCustom, LogoNone:
		return m, nil
	default:
		return "", fmt.Errorf("unknown logo mode %q: want default, custom or none", s)
	}
}

// LogoRequest describes the logo of one generation request
type LogoRequest struct {
	Mode LogoMode
	// Upload is the user supplied image, read only in custom mode
	Upload io.Reader
	Name   string
}

// AcquireLogo resolves the logo for a run. It never fails: any problem
// degrades to vouchers without a logo and is reported as a warning.
func (s *VoucherService) AcquireLogo(req LogoRequest) (*voucher.LogoAsset, []string) {
	switch req.Mode {
	case LogoNone:
		return nil, nil

	case LogoCustom:
		if req.Upload == nil {
			return nil, []string{"no custom logo uploaded, vouchers are generated without logo"}
		}
		name := req.Name
		if name == "" {
			name = "uploaded logo"
		}
		logo, err := voucher.DecodeLogo(req.Upload, name)
		if err != nil {
			s.logger.Warn("Uploaded logo rejected", zap.String("logo", name), zap.Error(err))
			return nil, []string{fmt.Sprintf("%v, vouchers are generated without logo", err)}
		}
		return logo, nil

	default:
		logo, err := s.defaultLogo()
		if err != nil {
			s.logger.Warn("Default logo unavailable", zap.String("path", s.opts.DefaultLogoPath), zap.Error(err))
			return nil, []string{fmt.Sprintf("%v, vouchers are generated without logo", err)}
		}
		return logo, nil
	}
}

// defaultLogo decodes the bundled logo once; failures are retried on the
// next request so that a logo installed later is picked up
func (s *VoucherService) defaultLogo() (*voucher.LogoAsset, error) {
	s.logoMu.Lock()
	defer s.logoMu.Unlock()

	if s.logo != nil {
		return s.logo, nil
	}
	if s.opts.DefaultLogoPath == "" {
		return nil, &voucher.LogoDecodeError{Err: fmt.Errorf("no default logo configured")}
	}
	logo, err := voucher.LoadLogoFile(s.opts.DefaultLogoPath)
	if err != nil {
		return nil, err
	}
	s.logo = logo
	return logo, nil
}
