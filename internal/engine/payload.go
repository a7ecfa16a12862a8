package engine

import (
	"slices"

	"github.com/rendis/ffts/pkg/schema"
)

func cloneKernel(k *schema.AICoreTemplate) *schema.AICoreTemplate {
	if k == nil {
		return nil
	}
	c := *k
	c.KernelAddrs = slices.Clone(k.KernelAddrs)
	return &c
}

func missingTemplate(n *schema.NodeDef, what string) error {
	return schema.NewErrorf(schema.ErrCodeMissingTemplate, "%s template required for op %s", what, n.OpType).WithNode(n.ID)
}

// resolveContextType derives the context type and copied payload of a
// single-context node from its template, falling back to the configured RTS
// op map for template-less runtime ops.
func resolveContextType(cfg *Config, n *schema.NodeDef) (schema.ContextType, *schema.Payload, error) {
	tpl := n.Template
	if tpl == nil || tpl.CoreType == "" {
		if t, ok := cfg.ContextTypeMap[n.OpType]; ok {
			return t, templatePayload(tpl), nil
		}
		return "", nil, missingTemplate(n, "core")
	}

	switch tpl.CoreType {
	case schema.CoreAICore, schema.CoreAIV:
		if tpl.AICore == nil {
			return "", nil, missingTemplate(n, "aicore")
		}
		t := schema.ContextAICore
		if tpl.CoreType == schema.CoreAIV {
			t = schema.ContextAIV
		}
		return t, &schema.Payload{AICore: cloneKernel(tpl.AICore)}, nil
	case schema.CoreMixAIC, schema.CoreMixAIV:
		if tpl.Mix == nil || (tpl.Mix.AIC == nil && tpl.Mix.AIV == nil) {
			return "", nil, missingTemplate(n, "mix")
		}
		t := schema.ContextMixAIC
		if tpl.CoreType == schema.CoreMixAIV {
			t = schema.ContextMixAIV
		}
		return t, &schema.Payload{AICore: cloneKernel(tpl.Mix.AIC), AIV: cloneKernel(tpl.Mix.AIV)}, nil
	case schema.CoreAICPU:
		if tpl.AICPU == nil {
			return "", nil, missingTemplate(n, "aicpu")
		}
		c := *tpl.AICPU
		return schema.ContextAICPU, &schema.Payload{AICPU: &c}, nil
	case schema.CoreSDMA:
		if tpl.SDMA == nil {
			return "", nil, missingTemplate(n, "sdma")
		}
		c := *tpl.SDMA
		return schema.ContextSDMA, &schema.Payload{SDMA: &c}, nil
	case schema.CoreNotifyWait, schema.CoreNotifyRecord:
		if tpl.Notify == nil {
			return "", nil, missingTemplate(n, "notify")
		}
		c := *tpl.Notify
		t := schema.ContextNotifyWait
		if tpl.CoreType == schema.CoreNotifyRecord {
			t = schema.ContextNotifyRecord
		}
		return t, &schema.Payload{Notify: &c}, nil
	case schema.CoreWriteValue:
		if tpl.WriteValue == nil {
			return "", nil, missingTemplate(n, "write_value")
		}
		c := *tpl.WriteValue
		return schema.ContextWriteValue, &schema.Payload{WriteValue: &c}, nil
	case schema.CoreCaseSwitch:
		if tpl.CaseSwitch == nil {
			return "", nil, missingTemplate(n, "case_switch")
		}
		c := *tpl.CaseSwitch
		return schema.ContextCaseSwitch, &schema.Payload{CaseSwitch: &c}, nil
	case schema.CoreAtStart:
		return schema.ContextAtStart, nil, nil
	case schema.CoreAtEnd:
		return schema.ContextAtEnd, nil, nil
	}
	return "", nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown core type %q", tpl.CoreType).WithNode(n.ID)
}

// templatePayload copies whatever sub-payloads a partial template carries.
func templatePayload(tpl *schema.Template) *schema.Payload {
	if tpl == nil {
		return nil
	}
	p := &schema.Payload{AICore: cloneKernel(tpl.AICore)}
	if tpl.AICPU != nil {
		c := *tpl.AICPU
		p.AICPU = &c
	}
	if tpl.SDMA != nil {
		c := *tpl.SDMA
		p.SDMA = &c
	}
	if tpl.Notify != nil {
		c := *tpl.Notify
		p.Notify = &c
	}
	if tpl.WriteValue != nil {
		c := *tpl.WriteValue
		p.WriteValue = &c
	}
	if tpl.CaseSwitch != nil {
		c := *tpl.CaseSwitch
		p.CaseSwitch = &c
	}
	return p
}
