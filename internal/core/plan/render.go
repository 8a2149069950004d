package plan

import (
	"context"
	"sort"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"

	"github.com/arrstack/arrstack/internal/core/domain"
)

// =============================================================================
// Compose Rendering
// =============================================================================

// RenderYAML renders the plan as a Docker Compose document. Output is
// byte-for-byte reproducible for an unchanged plan: containers appear in
// plan order and environment keys are sorted.
func RenderYAML(p *DeploymentPlan) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	services := &yaml.Node{Kind: yaml.MappingNode}
	for i := range p.Containers {
		c := &p.Containers[i]
		services.Content = append(services.Content, strNode(c.Name), containerNode(c, p.Network))
	}

	root := mapNode(
		"services", services,
		"networks", mapNode(
			p.Network, mapNode("driver", strNode("bridge")),
		),
	)
	if len(p.Volumes) > 0 {
		vols := &yaml.Node{Kind: yaml.MappingNode}
		for _, v := range p.Volumes {
			vols.Content = append(vols.Content, strNode(v), mapNode("driver", strNode("local")))
		}
		root.Content = append(root.Content, strNode("volumes"), vols)
	}

	var sb strings.Builder
	enc := yaml.NewEncoder(&sb)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return "", domain.NewValidationError("plan", "failed to render compose document: "+err.Error())
	}
	if err := enc.Close(); err != nil {
		return "", domain.NewValidationError("plan", "failed to render compose document: "+err.Error())
	}
	return sb.String(), nil
}

func containerNode(c *ContainerSpec, network string) *yaml.Node {
	n := mapNode(
		"container_name", strNode(c.Name),
		"image", strNode(c.Image),
	)

	if len(c.CapAdd) > 0 {
		n.Content = append(n.Content, strNode("cap_add"), seqNode(c.CapAdd...))
	}
	if len(c.Devices) > 0 {
		n.Content = append(n.Content, strNode("devices"), seqNode(c.Devices...))
	}
	if c.Runtime != "" {
		n.Content = append(n.Content, strNode("runtime"), strNode(c.Runtime))
	}
	if len(c.Ports) > 0 {
		ports := make([]string, 0, len(c.Ports))
		for _, pm := range c.Ports {
			ports = append(ports, pm.String())
		}
		n.Content = append(n.Content, strNode("ports"), seqNode(ports...))
	}

	if len(c.Environment) > 0 {
		keys := make([]string, 0, len(c.Environment))
		for k := range c.Environment {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		env := &yaml.Node{Kind: yaml.MappingNode}
		for _, k := range keys {
			env.Content = append(env.Content, strNode(k), strNode(c.Environment[k]))
		}
		n.Content = append(n.Content, strNode("environment"), env)
	}

	if len(c.Volumes) > 0 {
		mounts := make([]string, 0, len(c.Volumes))
		for _, v := range c.Volumes {
			mounts = append(mounts, v.String())
		}
		n.Content = append(n.Content, strNode("volumes"), seqNode(mounts...))
	}

	n.Content = append(n.Content, strNode("restart"), strNode(c.Restart))

	if c.NetworkMode != "" {
		n.Content = append(n.Content, strNode("network_mode"), strNode(c.NetworkMode))
	} else {
		n.Content = append(n.Content, strNode("networks"), seqNode(network))
	}

	return n
}

func strNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: s}
}

func seqNode(items ...string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.SequenceNode}
	for _, it := range items {
		n.Content = append(n.Content, strNode(it))
	}
	return n
}

// mapNode builds a mapping node from alternating key strings and value nodes.
func mapNode(pairs ...any) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for i := 0; i+1 < len(pairs); i += 2 {
		n.Content = append(n.Content, strNode(pairs[i].(string)), pairs[i+1].(*yaml.Node))
	}
	return n
}

// =============================================================================
// Rendered Document Verification
// =============================================================================

// ValidateRendered loads a rendered compose document through the compose-go
// loader, guaranteeing the runtime's composition tool will accept it.
func ValidateRendered(yamlContent string) error {
	var dict map[string]interface{}
	if err := yaml.Unmarshal([]byte(yamlContent), &dict); err != nil {
		return domain.NewValidationError("compose", "invalid YAML syntax")
	}
	if dict == nil {
		return domain.NewValidationError("compose", "empty compose document")
	}

	_, err := loader.LoadWithContext(context.Background(), types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{Content: []byte(yamlContent), Config: dict},
		},
	}, func(opts *loader.Options) {
		opts.SetProjectName("arrstack", false)
		opts.SkipValidation = false
		opts.SkipInterpolation = true // env file is resolved at apply time
		opts.SkipNormalization = true
		opts.SkipExtends = true
	})
	if err != nil {
		return domain.NewValidationError("compose", err.Error())
	}
	return nil
}
