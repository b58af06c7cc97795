// Package parser implements a hand-written recursive-descent parser over
// the Kooix token stream, following minzc's convention of a
// single-lookahead cursor with expect_X/at_X helper pairs, generalized to
// the capability/record/enum/function/workflow/agent declaration grammar
// Kooix sources use.
package parser

import (
	"github.com/telagod/kooixc/pkg/ast"
	"github.com/telagod/kooixc/pkg/diagnostic"
	"github.com/telagod/kooixc/pkg/position"
	"github.com/telagod/kooixc/pkg/token"
)

// Parse turns a token stream into a Program. Parsing is fatal-on-first
// error; the offending span is carried on the diagnostic.
func Parse(tokens []token.Token) (*ast.Program, *diagnostic.Diagnostic) {
	p := &parser{tokens: tokens}
	return p.parseProgram()
}

type parser struct {
	tokens []token.Token
	idx    int
}

func (p *parser) parseProgram() (*ast.Program, *diagnostic.Diagnostic) {
	var items []ast.Item
	for !p.atEOF() {
		var item ast.Item
		var err *diagnostic.Diagnostic
		switch {
		case p.at(token.KwCap):
			item, err = p.parseCapabilityDecl()
		case p.at(token.KwImport):
			item, err = p.parseImportDecl()
		case p.at(token.KwFn):
			item, err = p.parseFunctionDecl()
		case p.at(token.KwWorkflow):
			item, err = p.parseWorkflowDecl()
		case p.at(token.KwAgent):
			item, err = p.parseAgentDecl()
		case p.at(token.KwRecord):
			item, err = p.parseRecordDecl()
		case p.at(token.KwEnum):
			item, err = p.parseEnumDecl()
		default:
			d := p.errorf("expected top-level declaration, found %s", p.currentKindName())
			return nil, &d
		}
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return &ast.Program{Items: items}, nil
}

// --- top-level declarations ---

func (p *parser) parseCapabilityDecl() (*ast.CapabilityDecl, *diagnostic.Diagnostic) {
	start, err := p.expect(token.KwCap, "'cap'")
	if err != nil {
		return nil, err
	}
	cap, err := p.parseTypeRef()
	if err != nil {
		return nil, err
	}
	end, err := p.expect(token.Semicolon, "';'")
	if err != nil {
		return nil, err
	}
	return &ast.CapabilityDecl{Capability: cap, Sp: start.Join(end)}, nil
}

func (p *parser) parseImportDecl() (*ast.ImportDecl, *diagnostic.Diagnostic) {
	start, err := p.expect(token.KwImport, "'import'")
	if err != nil {
		return nil, err
	}
	path, ok := p.takeString()
	if !ok {
		d := p.errorf("expected string literal after 'import'")
		return nil, &d
	}
	alias := ""
	if p.at(token.KwAs) {
		p.advance()
		name, e := p.expectIdent()
		if e != nil {
			return nil, e
		}
		alias = name
	}
	end, err := p.expect(token.Semicolon, "';'")
	if err != nil {
		return nil, err
	}
	return &ast.ImportDecl{Path: path, Alias: alias, Sp: start.Join(end)}, nil
}

func (p *parser) parseRecordDecl() (*ast.RecordDecl, *diagnostic.Diagnostic) {
	start, err := p.expect(token.KwRecord, "'record'")
	if err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	generics, err := p.parseGenericParams()
	if err != nil {
		return nil, err
	}
	if err := p.parseOptionalWhereClause(generics); err != nil {
		return nil, err
	}

	if _, err := p.expect(token.LBrace, "'{'"); err != nil {
		return nil, err
	}
	var fields []ast.RecordField
	for !p.at(token.RBrace) {
		fname, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Colon, "':'"); err != nil {
			return nil, err
		}
		fty, err := p.parseTypeRef()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Semicolon, "';'"); err != nil {
			return nil, err
		}
		fields = append(fields, ast.RecordField{Name: fname, Type: fty})
	}
	end, err := p.expect(token.RBrace, "'}'")
	if err != nil {
		return nil, err
	}
	if p.at(token.Semicolon) {
		end = p.current().Span
		p.advance()
	}
	return &ast.RecordDecl{Name: name, Generics: generics, Fields: fields, Sp: start.Join(end)}, nil
}

func (p *parser) parseEnumDecl() (*ast.EnumDecl, *diagnostic.Diagnostic) {
	start, err := p.expect(token.KwEnum, "'enum'")
	if err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	generics, err := p.parseGenericParams()
	if err != nil {
		return nil, err
	}
	if err := p.parseOptionalWhereClause(generics); err != nil {
		return nil, err
	}

	if _, err := p.expect(token.LBrace, "'{'"); err != nil {
		return nil, err
	}
	var variants []ast.EnumVariant
	for !p.at(token.RBrace) {
		vname, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		var payload *ast.TypeRef
		if p.at(token.LParen) {
			p.advance()
			ty, err := p.parseTypeRef()
			if err != nil {
				return nil, err
			}
			payload = &ty
			if _, err := p.expect(token.RParen, "')'"); err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(token.Semicolon, "';'"); err != nil {
			return nil, err
		}
		variants = append(variants, ast.EnumVariant{Name: vname, Payload: payload})
	}
	end, err := p.expect(token.RBrace, "'}'")
	if err != nil {
		return nil, err
	}
	if p.at(token.Semicolon) {
		end = p.current().Span
		p.advance()
	}
	return &ast.EnumDecl{Name: name, Generics: generics, Variants: variants, Sp: start.Join(end)}, nil
}

func (p *parser) parseFunctionDecl() (*ast.FunctionDecl, *diagnostic.Diagnostic) {
	start, err := p.expect(token.KwFn, "'fn'")
	if err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	generics, err := p.parseGenericParams()
	if err != nil {
		return nil, err
	}

	params, err := p.parseParamList()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(token.Arrow, "'->'"); err != nil {
		return nil, err
	}
	retType, err := p.parseTypeRef()
	if err != nil {
		return nil, err
	}

	if err := p.parseOptionalWhereClause(generics); err != nil {
		return nil, err
	}

	intent, hasIntent, err := p.parseOptionalIntent()
	if err != nil {
		return nil, err
	}

	var effects []ast.Effect
	if p.at(token.Bang) {
		effects, err = p.parseEffects()
		if err != nil {
			return nil, err
		}
	}

	var requires []ast.TypeRef
	if p.at(token.KwRequires) {
		requires, err = p.parseRequires()
		if err != nil {
			return nil, err
		}
	}

	var ensures []ast.EnsureClause
	if p.at(token.KwEnsures) {
		ensures, err = p.parseEnsures()
		if err != nil {
			return nil, err
		}
	}

	var failure *ast.FailurePolicy
	if p.at(token.KwFailure) {
		fp, err := p.parseFailure()
		if err != nil {
			return nil, err
		}
		failure = fp
	}

	var evidence *ast.EvidenceSpec
	if p.at(token.KwEvidence) {
		ev, err := p.parseEvidence()
		if err != nil {
			return nil, err
		}
		evidence = ev
	}

	var body *ast.Block
	var end position.Span
	if p.at(token.LBrace) {
		b, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		body = b
		end = b.Sp
	} else {
		end, err = p.expect(token.Semicolon, "';'")
		if err != nil {
			return nil, err
		}
	}

	return &ast.FunctionDecl{
		Name: name, Generics: generics, Params: params, ReturnType: retType,
		Intent: intent, HasIntent: hasIntent, Effects: effects, Requires: requires,
		Ensures: ensures, Failure: failure, Evidence: evidence, Body: body,
		Sp: start.Join(end),
	}, nil
}

func (p *parser) parseWorkflowDecl() (*ast.WorkflowDecl, *diagnostic.Diagnostic) {
	start, err := p.expect(token.KwWorkflow, "'workflow'")
	if err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	params, err := p.parseParamList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Arrow, "'->'"); err != nil {
		return nil, err
	}
	retType, err := p.parseTypeRef()
	if err != nil {
		return nil, err
	}

	intent, hasIntent, err := p.parseOptionalIntent()
	if err != nil {
		return nil, err
	}

	var requires []ast.TypeRef
	if p.at(token.KwRequires) {
		requires, err = p.parseRequires()
		if err != nil {
			return nil, err
		}
	}

	steps, err := p.parseStepsBlock()
	if err != nil {
		return nil, err
	}

	var output []ast.OutputField
	if p.at(token.KwOutput) {
		output, err = p.parseOutputBlock()
		if err != nil {
			return nil, err
		}
	}

	var evidence *ast.EvidenceSpec
	if p.at(token.KwEvidence) {
		ev, err := p.parseEvidence()
		if err != nil {
			return nil, err
		}
		evidence = ev
	}

	end, err := p.expect(token.Semicolon, "';'")
	if err != nil {
		return nil, err
	}

	return &ast.WorkflowDecl{
		Name: name, Params: params, ReturnType: retType, Intent: intent, HasIntent: hasIntent,
		Requires: requires, Steps: steps, Output: output, Evidence: evidence,
		Sp: start.Join(end),
	}, nil
}

func (p *parser) parseAgentDecl() (*ast.AgentDecl, *diagnostic.Diagnostic) {
	start, err := p.expect(token.KwAgent, "'agent'")
	if err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	params, err := p.parseParamList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Arrow, "'->'"); err != nil {
		return nil, err
	}
	retType, err := p.parseTypeRef()
	if err != nil {
		return nil, err
	}

	intent, hasIntent, err := p.parseOptionalIntent()
	if err != nil {
		return nil, err
	}

	stateRules, err := p.parseStateBlock()
	if err != nil {
		return nil, err
	}
	policy, err := p.parsePolicyBlock()
	if err != nil {
		return nil, err
	}

	var requires []ast.TypeRef
	if p.at(token.KwRequires) {
		requires, err = p.parseRequires()
		if err != nil {
			return nil, err
		}
	}

	loopSpec, err := p.parseLoopBlock()
	if err != nil {
		return nil, err
	}

	var ensures []ast.EnsureClause
	if p.at(token.KwEnsures) {
		ensures, err = p.parseEnsures()
		if err != nil {
			return nil, err
		}
	}

	var evidence *ast.EvidenceSpec
	if p.at(token.KwEvidence) {
		ev, err := p.parseEvidence()
		if err != nil {
			return nil, err
		}
		evidence = ev
	}

	end, err := p.expect(token.Semicolon, "';'")
	if err != nil {
		return nil, err
	}

	return &ast.AgentDecl{
		Name: name, Params: params, ReturnType: retType, Intent: intent, HasIntent: hasIntent,
		StateRules: stateRules, Policy: policy, Requires: requires, LoopSpec: loopSpec,
		Ensures: ensures, Evidence: evidence, Sp: start.Join(end),
	}, nil
}

// --- shared sub-grammars ---

func (p *parser) parseParamList() ([]ast.Param, *diagnostic.Diagnostic) {
	if _, err := p.expect(token.LParen, "'('"); err != nil {
		return nil, err
	}
	var params []ast.Param
	if !p.at(token.RParen) {
		for {
			param, err := p.parseParam()
			if err != nil {
				return nil, err
			}
			params = append(params, param)
			if p.at(token.Comma) {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(token.RParen, "')'"); err != nil {
		return nil, err
	}
	return params, nil
}

func (p *parser) parseParam() (ast.Param, *diagnostic.Diagnostic) {
	name, err := p.expectIdent()
	if err != nil {
		return ast.Param{}, err
	}
	if _, err := p.expect(token.Colon, "':'"); err != nil {
		return ast.Param{}, err
	}
	ty, err := p.parseTypeRef()
	if err != nil {
		return ast.Param{}, err
	}
	return ast.Param{Name: name, Type: ty}, nil
}

func (p *parser) parseGenericParams() ([]ast.GenericParam, *diagnostic.Diagnostic) {
	var generics []ast.GenericParam
	if !p.at(token.LAngle) {
		return generics, nil
	}
	p.advance()
	if !p.at(token.RAngle) {
		for {
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			var bounds []ast.TypeRef
			if p.at(token.Colon) {
				p.advance()
				for {
					b, err := p.parseTypeRef()
					if err != nil {
						return nil, err
					}
					bounds = append(bounds, b)
					if p.at(token.Plus) {
						p.advance()
						continue
					}
					break
				}
			}
			generics = append(generics, ast.GenericParam{Name: name, Bounds: bounds})
			if p.at(token.Comma) {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(token.RAngle, "'>'"); err != nil {
		return nil, err
	}
	return generics, nil
}

// parseOptionalWhereClause folds `where T: A+B, U: C` bounds into the
// matching already-declared generic.
func (p *parser) parseOptionalWhereClause(generics []ast.GenericParam) *diagnostic.Diagnostic {
	if !p.at(token.KwWhere) {
		return nil
	}
	p.advance()
	for {
		name, err := p.expectIdent()
		if err != nil {
			return err
		}
		if _, err := p.expect(token.Colon, "':'"); err != nil {
			return err
		}
		var bounds []ast.TypeRef
		for {
			b, err := p.parseTypeRef()
			if err != nil {
				return err
			}
			bounds = append(bounds, b)
			if p.at(token.Plus) {
				p.advance()
				continue
			}
			break
		}
		found := false
		for i := range generics {
			if generics[i].Name == name {
				generics[i].Bounds = append(generics[i].Bounds, bounds...)
				found = true
				break
			}
		}
		if !found {
			d := p.errorf("where clause references unknown generic parameter '%s'", name)
			return &d
		}
		if p.at(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	return nil
}

func (p *parser) parseOptionalIntent() (string, bool, *diagnostic.Diagnostic) {
	if !p.at(token.KwIntent) {
		return "", false, nil
	}
	p.advance()
	value, ok := p.takeString()
	if !ok {
		d := p.errorf("expected string literal after 'intent'")
		return "", false, &d
	}
	return value, true, nil
}

func (p *parser) parseEffects() ([]ast.Effect, *diagnostic.Diagnostic) {
	if _, err := p.expect(token.Bang, "'!'"); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBrace, "'{'"); err != nil {
		return nil, err
	}
	var effects []ast.Effect
	if !p.at(token.RBrace) {
		for {
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			argument := ""
			hasArg := false
			if p.at(token.LParen) {
				p.advance()
				value, ok := p.takeIdent()
				if !ok {
					value, ok = p.takeString()
				}
				if !ok {
					value, ok = p.takeNumber()
				}
				if !ok {
					d := p.errorf("expected effect argument")
					return nil, &d
				}
				argument = value
				hasArg = true
				if _, err := p.expect(token.RParen, "')'"); err != nil {
					return nil, err
				}
			}
			effects = append(effects, ast.Effect{Name: name, Argument: argument, HasArg: hasArg})
			if p.at(token.Comma) {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(token.RBrace, "'}'"); err != nil {
		return nil, err
	}
	return effects, nil
}

func (p *parser) parseRequires() ([]ast.TypeRef, *diagnostic.Diagnostic) {
	if _, err := p.expect(token.KwRequires, "'requires'"); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBracket, "'['"); err != nil {
		return nil, err
	}
	var required []ast.TypeRef
	if !p.at(token.RBracket) {
		for {
			ty, err := p.parseTypeRef()
			if err != nil {
				return nil, err
			}
			required = append(required, ty)
			if p.at(token.Comma) {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(token.RBracket, "']'"); err != nil {
		return nil, err
	}
	return required, nil
}

func (p *parser) parseEnsures() ([]ast.EnsureClause, *diagnostic.Diagnostic) {
	if _, err := p.expect(token.KwEnsures, "'ensures'"); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBracket, "'['"); err != nil {
		return nil, err
	}
	var clauses []ast.EnsureClause
	if !p.at(token.RBracket) {
		for {
			clause, err := p.parseEnsureClause()
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, clause)
			if p.at(token.Comma) {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(token.RBracket, "']'"); err != nil {
		return nil, err
	}
	return clauses, nil
}

func (p *parser) parseFailure() (*ast.FailurePolicy, *diagnostic.Diagnostic) {
	if _, err := p.expect(token.KwFailure, "'failure'"); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBrace, "'{'"); err != nil {
		return nil, err
	}
	var rules []ast.FailureRule
	for !p.at(token.RBrace) {
		rule, err := p.parseFailureRule()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if _, err := p.expect(token.RBrace, "'}'"); err != nil {
		return nil, err
	}
	return &ast.FailurePolicy{Rules: rules}, nil
}

func (p *parser) parseFailureRule() (ast.FailureRule, *diagnostic.Diagnostic) {
	cond, err := p.expectIdent()
	if err != nil {
		return ast.FailureRule{}, err
	}
	if _, err := p.expect(token.Arrow, "'->'"); err != nil {
		return ast.FailureRule{}, err
	}
	action, err := p.parseFailureAction()
	if err != nil {
		return ast.FailureRule{}, err
	}
	if _, err := p.expect(token.Semicolon, "';'"); err != nil {
		return ast.FailureRule{}, err
	}
	return ast.FailureRule{Condition: cond, Action: action}, nil
}

func (p *parser) parseFailureAction() (ast.FailureAction, *diagnostic.Diagnostic) {
	start := p.current().Span
	name, err := p.expectIdent()
	if err != nil {
		return ast.FailureAction{}, err
	}
	if _, err := p.expect(token.LParen, "'('"); err != nil {
		return ast.FailureAction{}, err
	}
	var args []ast.FailureActionArg
	if !p.at(token.RParen) {
		for {
			arg, err := p.parseFailureActionArg()
			if err != nil {
				return ast.FailureAction{}, err
			}
			args = append(args, arg)
			if p.at(token.Comma) {
				p.advance()
				continue
			}
			break
		}
	}
	end, err := p.expect(token.RParen, "')'")
	if err != nil {
		return ast.FailureAction{}, err
	}
	return ast.FailureAction{Name: name, Args: args, Sp: start.Join(end)}, nil
}

func (p *parser) parseFailureActionArg() (ast.FailureActionArg, *diagnostic.Diagnostic) {
	if p.at(token.Ident) && p.peekKindIs(1, token.Eq) {
		key, err := p.expectIdent()
		if err != nil {
			return ast.FailureActionArg{}, err
		}
		if _, err := p.expect(token.Eq, "'='"); err != nil {
			return ast.FailureActionArg{}, err
		}
		kind, value, err := p.parseFailureValue()
		if err != nil {
			return ast.FailureActionArg{}, err
		}
		return ast.FailureActionArg{Key: key, HasKey: true, Kind: kind, Value: value}, nil
	}
	kind, value, err := p.parseFailureValue()
	if err != nil {
		return ast.FailureActionArg{}, err
	}
	return ast.FailureActionArg{Kind: kind, Value: value}, nil
}

func (p *parser) parseFailureValue() (ast.FailureValueKind, string, *diagnostic.Diagnostic) {
	if value, ok := p.takeIdent(); ok {
		return ast.FailureValueIdent, value, nil
	}
	if value, ok := p.takeString(); ok {
		return ast.FailureValueString, value, nil
	}
	if value, ok := p.takeNumber(); ok {
		return ast.FailureValueNumber, value, nil
	}
	d := p.errorf("expected failure action argument")
	return 0, "", &d
}

func (p *parser) parseEvidence() (*ast.EvidenceSpec, *diagnostic.Diagnostic) {
	start, err := p.expect(token.KwEvidence, "'evidence'")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBrace, "'{'"); err != nil {
		return nil, err
	}
	var trace string
	hasTrace := false
	var metrics []string

	for !p.at(token.RBrace) {
		switch {
		case p.at(token.KwTrace):
			p.advance()
			value, ok := p.takeString()
			if !ok {
				d := p.errorf("expected string literal after 'trace'")
				return nil, &d
			}
			trace = value
			hasTrace = true
			if _, err := p.expect(token.Semicolon, "';'"); err != nil {
				return nil, err
			}
		case p.at(token.KwMetrics):
			p.advance()
			if _, err := p.expect(token.LBracket, "'['"); err != nil {
				return nil, err
			}
			metrics, err = p.parseIdentifierList()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RBracket, "']'"); err != nil {
				return nil, err
			}
			if _, err := p.expect(token.Semicolon, "';'"); err != nil {
				return nil, err
			}
		default:
			d := p.errorf("expected 'trace' or 'metrics' in evidence block, found %s", p.currentKindName())
			return nil, &d
		}
	}

	end, err := p.expect(token.RBrace, "'}'")
	if err != nil {
		return nil, err
	}
	return &ast.EvidenceSpec{Trace: trace, HasTrace: hasTrace, Metrics: metrics, Sp: start.Join(end)}, nil
}

func (p *parser) parseStepsBlock() ([]ast.WorkflowStep, *diagnostic.Diagnostic) {
	if _, err := p.expect(token.KwSteps, "'steps'"); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBrace, "'{'"); err != nil {
		return nil, err
	}
	var steps []ast.WorkflowStep
	for !p.at(token.RBrace) {
		step, err := p.parseWorkflowStep()
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	if _, err := p.expect(token.RBrace, "'}'"); err != nil {
		return nil, err
	}
	return steps, nil
}

func (p *parser) parseWorkflowStep() (ast.WorkflowStep, *diagnostic.Diagnostic) {
	start := p.current().Span
	id, err := p.expectIdent()
	if err != nil {
		return ast.WorkflowStep{}, err
	}
	if _, err := p.expect(token.Colon, "':'"); err != nil {
		return ast.WorkflowStep{}, err
	}
	call, err := p.parseWorkflowCall()
	if err != nil {
		return ast.WorkflowStep{}, err
	}

	var ensures []ast.EnsureClause
	if p.at(token.KwEnsures) {
		ensures, err = p.parseEnsures()
		if err != nil {
			return ast.WorkflowStep{}, err
		}
	}

	var onFail *ast.FailureAction
	if p.at(token.KwOnFail) {
		p.advance()
		if _, err := p.expect(token.Arrow, "'->'"); err != nil {
			return ast.WorkflowStep{}, err
		}
		action, err := p.parseFailureAction()
		if err != nil {
			return ast.WorkflowStep{}, err
		}
		onFail = &action
	}

	end, err := p.expect(token.Semicolon, "';'")
	if err != nil {
		return ast.WorkflowStep{}, err
	}
	return ast.WorkflowStep{ID: id, Call: call, Ensures: ensures, OnFail: onFail, Sp: start.Join(end)}, nil
}

func (p *parser) parseWorkflowCall() (ast.WorkflowCall, *diagnostic.Diagnostic) {
	target, err := p.qualifiedIdent()
	if err != nil {
		return ast.WorkflowCall{}, err
	}
	if _, err := p.expect(token.LParen, "'('"); err != nil {
		return ast.WorkflowCall{}, err
	}
	var args []ast.WorkflowCallArg
	if !p.at(token.RParen) {
		for {
			arg, err := p.parseWorkflowCallArg()
			if err != nil {
				return ast.WorkflowCall{}, err
			}
			args = append(args, arg)
			if p.at(token.Comma) {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(token.RParen, "')'"); err != nil {
		return ast.WorkflowCall{}, err
	}
	return ast.WorkflowCall{Target: target, Args: args}, nil
}

func (p *parser) parseWorkflowCallArg() (ast.WorkflowCallArg, *diagnostic.Diagnostic) {
	if value, ok := p.takeString(); ok {
		return ast.WorkflowCallArg{Kind: ast.CallArgString, String: value}, nil
	}
	if value, ok := p.takeNumber(); ok {
		return ast.WorkflowCallArg{Kind: ast.CallArgNumber, Number: value}, nil
	}
	if p.at(token.Ident) {
		path, err := p.parseSymbolPath()
		if err != nil {
			return ast.WorkflowCallArg{}, err
		}
		return ast.WorkflowCallArg{Kind: ast.CallArgPath, Path: path}, nil
	}
	d := p.errorf("expected workflow step argument")
	return ast.WorkflowCallArg{}, &d
}

func (p *parser) parseStateBlock() ([]ast.StateRule, *diagnostic.Diagnostic) {
	if _, err := p.expect(token.KwState, "'state'"); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBrace, "'{'"); err != nil {
		return nil, err
	}
	var rules []ast.StateRule
	for !p.at(token.RBrace) {
		var from string
		if p.at(token.KwAny) {
			p.advance()
			from = "any"
		} else {
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			from = name
		}
		if _, err := p.expect(token.Arrow, "'->'"); err != nil {
			return nil, err
		}
		var to []string
		for {
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			to = append(to, name)
			if p.at(token.Comma) {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(token.Semicolon, "';'"); err != nil {
			return nil, err
		}
		rules = append(rules, ast.StateRule{From: from, To: to})
	}
	if _, err := p.expect(token.RBrace, "'}'"); err != nil {
		return nil, err
	}
	return rules, nil
}

func (p *parser) parsePolicyBlock() (ast.AgentPolicy, *diagnostic.Diagnostic) {
	if _, err := p.expect(token.KwPolicy, "'policy'"); err != nil {
		return ast.AgentPolicy{}, err
	}
	if _, err := p.expect(token.LBrace, "'{'"); err != nil {
		return ast.AgentPolicy{}, err
	}

	var allow, deny []string
	maxIter := ""
	hasMaxIter := false
	var humanInLoop *ast.EnsureClause

	for !p.at(token.RBrace) {
		switch {
		case p.at(token.KwAllowTools):
			p.advance()
			if _, err := p.expect(token.LBracket, "'['"); err != nil {
				return ast.AgentPolicy{}, err
			}
			list, err := p.parseStringList()
			if err != nil {
				return ast.AgentPolicy{}, err
			}
			allow = list
			if _, err := p.expect(token.RBracket, "']'"); err != nil {
				return ast.AgentPolicy{}, err
			}
			if _, err := p.expect(token.Semicolon, "';'"); err != nil {
				return ast.AgentPolicy{}, err
			}
		case p.at(token.KwDenyTools):
			p.advance()
			if _, err := p.expect(token.LBracket, "'['"); err != nil {
				return ast.AgentPolicy{}, err
			}
			list, err := p.parseStringList()
			if err != nil {
				return ast.AgentPolicy{}, err
			}
			deny = list
			if _, err := p.expect(token.RBracket, "']'"); err != nil {
				return ast.AgentPolicy{}, err
			}
			if _, err := p.expect(token.Semicolon, "';'"); err != nil {
				return ast.AgentPolicy{}, err
			}
		case p.at(token.KwMaxIterations):
			p.advance()
			if _, err := p.expect(token.Eq, "'='"); err != nil {
				return ast.AgentPolicy{}, err
			}
			value, ok := p.takeNumber()
			if !ok {
				d := p.errorf("expected number after 'max_iterations ='")
				return ast.AgentPolicy{}, &d
			}
			maxIter = value
			hasMaxIter = true
			if _, err := p.expect(token.Semicolon, "';'"); err != nil {
				return ast.AgentPolicy{}, err
			}
		case p.at(token.KwHumanInLoop):
			p.advance()
			if _, err := p.expect(token.KwWhen, "'when'"); err != nil {
				return ast.AgentPolicy{}, err
			}
			clause, err := p.parseEnsureClause()
			if err != nil {
				return ast.AgentPolicy{}, err
			}
			humanInLoop = &clause
			if _, err := p.expect(token.Semicolon, "';'"); err != nil {
				return ast.AgentPolicy{}, err
			}
		default:
			d := p.errorf("expected policy clause in agent policy block, found %s", p.currentKindName())
			return ast.AgentPolicy{}, &d
		}
	}

	if _, err := p.expect(token.RBrace, "'}'"); err != nil {
		return ast.AgentPolicy{}, err
	}
	return ast.AgentPolicy{
		AllowTools: allow, DenyTools: deny, MaxIterations: maxIter,
		HasMaxIterations: hasMaxIter, HumanInLoopWhen: humanInLoop,
	}, nil
}

func (p *parser) parseLoopBlock() (ast.LoopSpec, *diagnostic.Diagnostic) {
	if _, err := p.expect(token.KwLoop, "'loop'"); err != nil {
		return ast.LoopSpec{}, err
	}
	if _, err := p.expect(token.LBrace, "'{'"); err != nil {
		return ast.LoopSpec{}, err
	}

	first, err := p.expectIdent()
	if err != nil {
		return ast.LoopSpec{}, err
	}
	stages := []string{first}
	for p.at(token.Arrow) {
		p.advance()
		stage, err := p.expectIdent()
		if err != nil {
			return ast.LoopSpec{}, err
		}
		stages = append(stages, stage)
	}
	if _, err := p.expect(token.Semicolon, "';'"); err != nil {
		return ast.LoopSpec{}, err
	}

	if _, err := p.expect(token.KwStop, "'stop'"); err != nil {
		return ast.LoopSpec{}, err
	}
	if _, err := p.expect(token.KwWhen, "'when'"); err != nil {
		return ast.LoopSpec{}, err
	}
	stopWhen, err := p.parseEnsureClause()
	if err != nil {
		return ast.LoopSpec{}, err
	}
	if _, err := p.expect(token.Semicolon, "';'"); err != nil {
		return ast.LoopSpec{}, err
	}

	if _, err := p.expect(token.RBrace, "'}'"); err != nil {
		return ast.LoopSpec{}, err
	}
	return ast.LoopSpec{Stages: stages, StopWhen: stopWhen}, nil
}

func (p *parser) parseOutputBlock() ([]ast.OutputField, *diagnostic.Diagnostic) {
	if _, err := p.expect(token.KwOutput, "'output'"); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBrace, "'{'"); err != nil {
		return nil, err
	}
	var fields []ast.OutputField
	for !p.at(token.RBrace) {
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Colon, "':'"); err != nil {
			return nil, err
		}
		ty, err := p.parseTypeRef()
		if err != nil {
			return nil, err
		}
		var source []string
		if p.at(token.Eq) {
			p.advance()
			source, err = p.parseSymbolPath()
			if err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(token.Semicolon, "';'"); err != nil {
			return nil, err
		}
		fields = append(fields, ast.OutputField{Name: name, Type: ty, Source: source})
	}
	if _, err := p.expect(token.RBrace, "'}'"); err != nil {
		return nil, err
	}
	return fields, nil
}

func (p *parser) parseSymbolPath() ([]string, *diagnostic.Diagnostic) {
	head, err := p.qualifiedIdent()
	if err != nil {
		return nil, err
	}
	segments := []string{head}
	for p.at(token.Dot) {
		p.advance()
		seg, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

func (p *parser) parseIdentifierList() ([]string, *diagnostic.Diagnostic) {
	var items []string
	if p.at(token.RBracket) {
		return items, nil
	}
	for {
		item, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.at(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}

func (p *parser) parseStringList() ([]string, *diagnostic.Diagnostic) {
	var items []string
	if p.at(token.RBracket) {
		return items, nil
	}
	for {
		value, ok := p.takeString()
		if !ok {
			d := p.errorf("expected string literal")
			return nil, &d
		}
		items = append(items, value)
		if p.at(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}

func (p *parser) parseEnsureClause() (ast.EnsureClause, *diagnostic.Diagnostic) {
	left, err := p.parsePredicateValue()
	if err != nil {
		return ast.EnsureClause{}, err
	}
	op, err := p.parsePredicateOp()
	if err != nil {
		return ast.EnsureClause{}, err
	}
	right, err := p.parsePredicateValue()
	if err != nil {
		return ast.EnsureClause{}, err
	}
	return ast.EnsureClause{Left: left, Op: op, Right: right}, nil
}

func (p *parser) parsePredicateValue() (ast.PredicateValue, *diagnostic.Diagnostic) {
	if value, ok := p.takeString(); ok {
		return ast.PredicateValue{Kind: ast.PredicateString, String: value}, nil
	}
	if value, ok := p.takeNumber(); ok {
		return ast.PredicateValue{Kind: ast.PredicateNumber, Number: value}, nil
	}
	if p.at(token.Ident) || p.at(token.KwOutput) || p.at(token.KwState) {
		var segments []string
		switch {
		case p.at(token.KwOutput):
			p.advance()
			segments = append(segments, "output")
		case p.at(token.KwState):
			p.advance()
			segments = append(segments, "state")
		default:
			head, err := p.qualifiedIdent()
			if err != nil {
				return ast.PredicateValue{}, err
			}
			segments = append(segments, head)
		}
		for p.at(token.Dot) {
			p.advance()
			seg, err := p.expectIdent()
			if err != nil {
				return ast.PredicateValue{}, err
			}
			segments = append(segments, seg)
		}
		return ast.PredicateValue{Kind: ast.PredicatePath, Path: segments}, nil
	}
	d := p.errorf("expected predicate value")
	return ast.PredicateValue{}, &d
}

func (p *parser) parsePredicateOp() (ast.PredicateOp, *diagnostic.Diagnostic) {
	var op ast.PredicateOp
	switch {
	case p.at(token.EqEq):
		op = ast.OpEq
	case p.at(token.NotEq):
		op = ast.OpNotEq
	case p.at(token.Lte):
		op = ast.OpLte
	case p.at(token.Gte):
		op = ast.OpGte
	case p.at(token.LAngle):
		op = ast.OpLt
	case p.at(token.RAngle):
		op = ast.OpGt
	case p.at(token.KwIn):
		op = ast.OpIn
	default:
		d := p.errorf("expected predicate operator")
		return 0, &d
	}
	p.advance()
	return op, nil
}

func (p *parser) parseTypeRef() (ast.TypeRef, *diagnostic.Diagnostic) {
	start := p.current().Span
	name, err := p.qualifiedIdent()
	if err != nil {
		return ast.TypeRef{}, err
	}
	var args []ast.TypeArg
	end := start
	if p.at(token.LAngle) {
		p.advance()
		if !p.at(token.RAngle) {
			for {
				arg, err := p.parseTypeArg()
				if err != nil {
					return ast.TypeRef{}, err
				}
				args = append(args, arg)
				if p.at(token.Comma) {
					p.advance()
					continue
				}
				break
			}
		}
		closeSpan, err := p.expect(token.RAngle, "'>'")
		if err != nil {
			return ast.TypeRef{}, err
		}
		end = closeSpan
	} else {
		end = p.tokens[p.idx-1].Span
	}
	return ast.TypeRef{Name: name, Args: args, Sp: start.Join(end)}, nil
}

func (p *parser) parseTypeArg() (ast.TypeArg, *diagnostic.Diagnostic) {
	if value, ok := p.takeString(); ok {
		return ast.TypeArg{Kind: ast.TypeArgString, String: value}, nil
	}
	if value, ok := p.takeNumber(); ok {
		return ast.TypeArg{Kind: ast.TypeArgNumber, Number: value}, nil
	}
	if p.at(token.Ident) {
		ty, err := p.parseTypeRef()
		if err != nil {
			return ast.TypeArg{}, err
		}
		return ast.TypeArg{Kind: ast.TypeArgType, Type: &ty}, nil
	}
	d := p.errorf("expected type argument")
	return ast.TypeArg{}, &d
}

// --- expressions & statements ---

func (p *parser) parseBlock() (*ast.Block, *diagnostic.Diagnostic) {
	start, err := p.expect(token.LBrace, "'{'")
	if err != nil {
		return nil, err
	}
	var stmts []ast.Stmt
	var tail ast.Expr

	for !p.at(token.RBrace) {
		switch {
		case p.at(token.KwLet):
			stmt, err := p.parseLetStmt()
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, stmt)
		case p.at(token.KwReturn):
			stmt, err := p.parseReturnStmt()
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, stmt)
		case p.at(token.Ident) && p.peekKindIs(1, token.Eq):
			stmt, err := p.parseAssignStmt()
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, stmt)
		default:
			exprStart := p.current().Span
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if p.at(token.Semicolon) {
				semiEnd := p.current().Span
				p.advance()
				stmts = append(stmts, &ast.ExprStmt{Value: expr, Sp: exprStart.Join(semiEnd)})
				continue
			}
			// A block-like expression (if/while/match/block) followed by more
			// statements is a statement of its own rather than the tail.
			switch expr.(type) {
			case *ast.IfExpr, *ast.WhileExpr, *ast.MatchExpr, *ast.BlockExpr:
				if !p.at(token.RBrace) {
					stmts = append(stmts, &ast.ExprStmt{Value: expr, Sp: exprStart.Join(expr.Span())})
					continue
				}
			}
			tail = expr
			goto afterStmts
		}
	}
afterStmts:
	end, err := p.expect(token.RBrace, "'}'")
	if err != nil {
		return nil, err
	}
	return &ast.Block{Stmts: stmts, Tail: tail, Sp: start.Join(end)}, nil
}

func (p *parser) parseLetStmt() (*ast.LetStmt, *diagnostic.Diagnostic) {
	start, err := p.expect(token.KwLet, "'let'")
	if err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	var ty *ast.TypeRef
	if p.at(token.Colon) {
		p.advance()
		t, err := p.parseTypeRef()
		if err != nil {
			return nil, err
		}
		ty = &t
	}
	if _, err := p.expect(token.Eq, "'='"); err != nil {
		return nil, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	end, err := p.expect(token.Semicolon, "';'")
	if err != nil {
		return nil, err
	}
	return &ast.LetStmt{Name: name, Type: ty, Value: value, Sp: start.Join(end)}, nil
}

func (p *parser) parseAssignStmt() (*ast.AssignStmt, *diagnostic.Diagnostic) {
	start := p.current().Span
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Eq, "'='"); err != nil {
		return nil, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	end, err := p.expect(token.Semicolon, "';'")
	if err != nil {
		return nil, err
	}
	return &ast.AssignStmt{Name: name, Value: value, Sp: start.Join(end)}, nil
}

func (p *parser) parseReturnStmt() (*ast.ReturnStmt, *diagnostic.Diagnostic) {
	start, err := p.expect(token.KwReturn, "'return'")
	if err != nil {
		return nil, err
	}
	var value ast.Expr
	if !p.at(token.Semicolon) {
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		value = v
	}
	end, err := p.expect(token.Semicolon, "';'")
	if err != nil {
		return nil, err
	}
	return &ast.ReturnStmt{Value: value, Sp: start.Join(end)}, nil
}

// parseExpr parses the `==`/`!=` equality level, the lowest precedence
// binary operators the language supports.
func (p *parser) parseExpr() (ast.Expr, *diagnostic.Diagnostic) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.at(token.EqEq) || p.at(token.NotEq) {
		op := "=="
		if p.at(token.NotEq) {
			op = "!="
		}
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right, Sp: left.Span().Join(right.Span())}
	}
	return left, nil
}

func (p *parser) parseAdditive() (ast.Expr, *diagnostic.Diagnostic) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.at(token.Plus) {
		p.advance()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: "+", Left: left, Right: right, Sp: left.Span().Join(right.Span())}
	}
	return left, nil
}

func (p *parser) parsePrimary() (ast.Expr, *diagnostic.Diagnostic) {
	switch {
	case p.at(token.KwIf):
		return p.parseIfExpr()
	case p.at(token.KwWhile):
		return p.parseWhileExpr()
	case p.at(token.KwMatch):
		return p.parseMatchExpr()
	case p.at(token.KwTrue):
		sp := p.current().Span
		p.advance()
		return &ast.BoolLit{Value: true, Sp: sp}, nil
	case p.at(token.KwFalse):
		sp := p.current().Span
		p.advance()
		return &ast.BoolLit{Value: false, Sp: sp}, nil
	case p.at(token.Number):
		tok := p.current()
		p.advance()
		return &ast.IntLit{Text: tok.Text, Sp: tok.Span}, nil
	case p.at(token.String):
		tok := p.current()
		p.advance()
		return &ast.StringLit{Value: tok.Text, Sp: tok.Span}, nil
	case p.at(token.LBrace):
		block, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &ast.BlockExpr{Block: block}, nil
	case p.at(token.Ident):
		return p.parseIdentExpr()
	default:
		d := p.errorf("expected expression, found %s", p.currentKindName())
		return nil, &d
	}
}

func (p *parser) parseIdentExpr() (ast.Expr, *diagnostic.Diagnostic) {
	start := p.current().Span
	head, err := p.qualifiedIdent()
	if err != nil {
		return nil, err
	}

	switch {
	// `Name {` opens a record literal only when the brace holds `field:` or
	// nothing, so `if c { ... }` and `match o { ... }` keep their block.
	case p.at(token.LBrace) && (p.peekKindIs(1, token.RBrace) || (p.peekKindIs(1, token.Ident) && p.peekKindIs(2, token.Colon))):
		return p.parseRecordLitTail(head, start)
	case p.at(token.LParen):
		return p.parseCallTail(head, start)
	case p.at(token.Dot):
		p.advance()
		segment, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if p.at(token.LParen) {
			p.advance()
			var payload ast.Expr
			if !p.at(token.RParen) {
				pay, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				payload = pay
			}
			end, err := p.expect(token.RParen, "')'")
			if err != nil {
				return nil, err
			}
			return &ast.EnumLit{Enum: head, Variant: segment, Payload: payload, Sp: start.Join(end)}, nil
		}
		var expr ast.Expr = &ast.FieldAccess{Base: &ast.Ident{Name: head, Sp: start}, Field: segment, Sp: start.Join(p.tokens[p.idx-1].Span)}
		for p.at(token.Dot) {
			p.advance()
			seg, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			fa := expr.(*ast.FieldAccess)
			expr = &ast.FieldAccess{Base: fa, Field: seg, Sp: start.Join(p.tokens[p.idx-1].Span)}
		}
		return expr, nil
	default:
		return &ast.Ident{Name: head, Sp: start}, nil
	}
}

func (p *parser) parseRecordLitTail(name string, start position.Span) (ast.Expr, *diagnostic.Diagnostic) {
	if _, err := p.expect(token.LBrace, "'{'"); err != nil {
		return nil, err
	}
	var fields []ast.RecordFieldInit
	for !p.at(token.RBrace) {
		fname, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Colon, "':'"); err != nil {
			return nil, err
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Semicolon, "';'"); err != nil {
			return nil, err
		}
		fields = append(fields, ast.RecordFieldInit{Name: fname, Value: value})
	}
	end, err := p.expect(token.RBrace, "'}'")
	if err != nil {
		return nil, err
	}
	return &ast.RecordLit{Record: name, Fields: fields, Sp: start.Join(end)}, nil
}

func (p *parser) parseCallTail(callee string, start position.Span) (ast.Expr, *diagnostic.Diagnostic) {
	if _, err := p.expect(token.LParen, "'('"); err != nil {
		return nil, err
	}
	var args []ast.Expr
	if !p.at(token.RParen) {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.at(token.Comma) {
				p.advance()
				continue
			}
			break
		}
	}
	end, err := p.expect(token.RParen, "')'")
	if err != nil {
		return nil, err
	}
	return &ast.CallExpr{Callee: callee, Args: args, Sp: start.Join(end)}, nil
}

func (p *parser) parseIfExpr() (ast.Expr, *diagnostic.Diagnostic) {
	start, err := p.expect(token.KwIf, "'if'")
	if err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	var elseBlock *ast.Block
	end := then.Sp
	if p.at(token.KwElse) {
		p.advance()
		eb, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		elseBlock = eb
		end = eb.Sp
	}
	return &ast.IfExpr{Cond: cond, Then: then, Else: elseBlock, Sp: start.Join(end)}, nil
}

func (p *parser) parseWhileExpr() (ast.Expr, *diagnostic.Diagnostic) {
	start, err := p.expect(token.KwWhile, "'while'")
	if err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.WhileExpr{Cond: cond, Body: body, Sp: start.Join(body.Sp)}, nil
}

func (p *parser) parseMatchExpr() (ast.Expr, *diagnostic.Diagnostic) {
	start, err := p.expect(token.KwMatch, "'match'")
	if err != nil {
		return nil, err
	}
	scrutinee, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBrace, "'{'"); err != nil {
		return nil, err
	}
	var arms []ast.MatchArm
	for !p.at(token.RBrace) {
		arm, err := p.parseMatchArm()
		if err != nil {
			return nil, err
		}
		arms = append(arms, arm)
		if p.at(token.Comma) {
			p.advance()
		}
	}
	end, err := p.expect(token.RBrace, "'}'")
	if err != nil {
		return nil, err
	}
	return &ast.MatchExpr{Scrutinee: scrutinee, Arms: arms, Sp: start.Join(end)}, nil
}

func (p *parser) parseMatchArm() (ast.MatchArm, *diagnostic.Diagnostic) {
	sp := p.current().Span
	if p.at(token.Ident) && p.current().Text == "_" {
		p.advance()
		if _, err := p.expect(token.FatArrow, "'=>'"); err != nil {
			return ast.MatchArm{}, err
		}
		body, err := p.parseExpr()
		if err != nil {
			return ast.MatchArm{}, err
		}
		return ast.MatchArm{Wildcard: true, Body: body, Sp: sp}, nil
	}

	head, err := p.qualifiedIdent()
	if err != nil {
		return ast.MatchArm{}, err
	}
	enum := ""
	variant := head
	if p.at(token.Dot) {
		p.advance()
		v, err := p.expectIdent()
		if err != nil {
			return ast.MatchArm{}, err
		}
		enum = head
		variant = v
	}
	bind := ""
	hasBind := false
	if p.at(token.LParen) {
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return ast.MatchArm{}, err
		}
		bind = name
		hasBind = true
		if _, err := p.expect(token.RParen, "')'"); err != nil {
			return ast.MatchArm{}, err
		}
	}
	if _, err := p.expect(token.FatArrow, "'=>'"); err != nil {
		return ast.MatchArm{}, err
	}
	body, err := p.parseExpr()
	if err != nil {
		return ast.MatchArm{}, err
	}
	return ast.MatchArm{Enum: enum, Variant: variant, Bind: bind, HasBind: hasBind, Body: body, Sp: sp}, nil
}

// --- token-stream primitives ---

func (p *parser) current() token.Token { return p.tokens[p.idx] }

func (p *parser) atEOF() bool { return p.current().Kind == token.EOF }

func (p *parser) at(k token.Kind) bool { return p.current().Kind == k }

func (p *parser) advance() {
	if !p.atEOF() {
		p.idx++
	}
}

func (p *parser) peekKindIs(n int, k token.Kind) bool {
	idx := p.idx + n
	if idx >= len(p.tokens) {
		return false
	}
	return p.tokens[idx].Kind == k
}

func (p *parser) expect(k token.Kind, expected string) (position.Span, *diagnostic.Diagnostic) {
	if p.at(k) {
		sp := p.current().Span
		p.advance()
		return sp, nil
	}
	d := p.errorf("expected %s, found %s", expected, p.currentKindName())
	return position.Span{}, &d
}

func (p *parser) expectIdent() (string, *diagnostic.Diagnostic) {
	if p.at(token.Ident) {
		value := p.current().Text
		p.advance()
		return value, nil
	}
	d := p.errorf("expected identifier, found %s", p.currentKindName())
	return "", &d
}

// qualifiedIdent reads an identifier optionally followed by `:: Ident`,
// joining the two with "::" so callers that accept a plain name can also
// accept a namespaced reference into an imported module.
func (p *parser) qualifiedIdent() (string, *diagnostic.Diagnostic) {
	name, err := p.expectIdent()
	if err != nil {
		return "", err
	}
	for p.at(token.ColonColon) {
		p.advance()
		rest, err := p.expectIdent()
		if err != nil {
			return "", err
		}
		name = name + "::" + rest
	}
	return name, nil
}

func (p *parser) takeIdent() (string, bool) {
	if p.at(token.Ident) {
		value := p.current().Text
		p.advance()
		return value, true
	}
	return "", false
}

func (p *parser) takeString() (string, bool) {
	if p.at(token.String) {
		value := p.current().Text
		p.advance()
		return value, true
	}
	return "", false
}

func (p *parser) takeNumber() (string, bool) {
	if p.at(token.Number) {
		value := p.current().Text
		p.advance()
		return value, true
	}
	return "", false
}

func (p *parser) currentKindName() string {
	return p.current().Kind.String()
}

func (p *parser) errorf(format string, args ...any) diagnostic.Diagnostic {
	return diagnostic.NewError(p.current().Span, format, args...)
}
