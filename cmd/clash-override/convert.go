package main

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/John-Robertt/clash-override/internal/catalog"
	"github.com/John-Robertt/clash-override/internal/compiler"
	"github.com/John-Robertt/clash-override/internal/pipeline"
	"github.com/John-Robertt/clash-override/internal/render"
	"github.com/John-Robertt/clash-override/internal/sub"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// convertFile runs the conversion pipeline on a local subscription file and
// writes the config (or, with --explain, the resolved group members and the
// region each node was counted under).
func convertFile(cfg config, cat *catalog.Catalog, stdin io.Reader, stdout io.Writer) error {
	var (
		raw []byte
		err error
	)
	if cfg.input == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(cfg.input)
	}
	if err != nil {
		return err
	}

	target, err := render.ParseTarget(cfg.target)
	if err != nil {
		return err
	}
	nodes, err := sub.Parse(cfg.input, string(raw))
	if err != nil {
		return err
	}

	res, err := pipeline.Run([]pipeline.Source{{
		URL:      cfg.input,
		Nodes:    nodes,
		Provider: cfg.provider,
		UserInfo: cfg.userinfo,
	}}, pipeline.Options{
		Flags: compiler.Flags{
			LoadBalance: cfg.lb,
			Landing:     cfg.landing,
			IPv6:        cfg.ipv6,
			FullConfig:  cfg.full,
			KeepAlive:   cfg.keep,
		},
		Info:    !cfg.noInfo,
		Stamp:   !cfg.noStamp,
		Catalog: cat,
		Now:     time.Now(),
		Logger:  logrus.StandardLogger(),
	})
	if err != nil {
		return err
	}

	var out []byte
	if cfg.explain {
		members, err := compiler.Explain(res.Config)
		if err != nil {
			return err
		}
		report := struct {
			Groups []compiler.Membership `yaml:"groups"`
			Nodes  []compiler.Placement  `yaml:"nodes"`
		}{members, compiler.Place(res.Config, cat)}

		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		out = buf.Bytes()
	} else if out, err = render.Render(target, res.Config); err != nil {
		return err
	}

	if cfg.output == "" || cfg.output == "-" {
		_, err = stdout.Write(out)
		return err
	}
	return os.WriteFile(cfg.output, out, 0o644)
}
