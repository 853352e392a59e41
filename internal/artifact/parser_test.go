package artifact

import "testing"

func TestParseArchitecture_StructuredJSON(t *testing.T) {
	p := NewParser()
	text := `Here is my plan:
	{
	  "analysis": {
	    "components": ["cli", "parser", "formatter"],
	    "dependencies": [],
	    "architecture_type": "CLI",
	    "complexity": "simple",
	    "summary": "a word-count CLI"
	  },
	  "file_structure": {
	    "files": {"main.py": "entry point", "wordcount.py": "counting logic"},
	    "entry_point": "main.py",
	    "class_definitions": {}
	  },
	  "detailed_plan": {}
	}`

	plan, conf := p.ParseArchitecture(text, "count words in a file")
	if conf != ConfidenceHigh {
		t.Fatalf("confidence = %v, want High", conf)
	}
	if plan.FileStructure.EntryPoint != "main.py" {
		t.Fatalf("entry point = %q", plan.FileStructure.EntryPoint)
	}
	if len(plan.Analysis.Components) != 3 {
		t.Fatalf("components = %v, want 3", plan.Analysis.Components)
	}
	if len(plan.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", plan.Warnings)
	}
}

func TestParseArchitecture_MissingEntryPointWarns(t *testing.T) {
	p := NewParser()
	text := `{"analysis":{"components":["a","b"]},"file_structure":{"files":{"a.py":"x"},"entry_point":"missing.py"}}`
	plan, conf := p.ParseArchitecture(text, "req")
	if conf != ConfidenceHigh {
		t.Fatalf("confidence = %v, want High (parseable but deviant)", conf)
	}
	if len(plan.Warnings) == 0 {
		t.Fatalf("expected a warning for mismatched entry point and component count")
	}
}

func TestParseArchitecture_Unparseable_FallsBack(t *testing.T) {
	p := NewParser()
	plan, conf := p.ParseArchitecture("I couldn't figure out a plan, sorry!", "req")
	if conf != ConfidenceLow {
		t.Fatalf("confidence = %v, want Low", conf)
	}
	if plan.FileStructure.EntryPoint != "main.py" {
		t.Fatalf("fallback entry point = %q, want main.py", plan.FileStructure.EntryPoint)
	}
}

func TestParseCodePackage_StructuredJSON(t *testing.T) {
	p := NewParser()
	text := `{"main.py": "print('hi')", "util.py": "def helper(): pass"}`
	files, conf := p.ParseCodePackage(text, []string{"main.py", "util.py"})
	if conf != ConfidenceHigh {
		t.Fatalf("confidence = %v, want High", conf)
	}
	if files["main.py"] != "print('hi')" {
		t.Fatalf("main.py = %q", files["main.py"])
	}
}

func TestParseCodePackage_FilenameHintedFences(t *testing.T) {
	p := NewParser()
	text := "# main.py\n```python\nimport util\n\ndef main():\n    util.helper()\n```\n\n# util.py\n```python\ndef helper():\n    return 42\n```"
	files, conf := p.ParseCodePackage(text, nil)
	if conf != ConfidenceHigh {
		t.Fatalf("confidence = %v, want High", conf)
	}
	if _, ok := files["main.py"]; !ok {
		t.Fatalf("expected main.py in %v", files)
	}
	if _, ok := files["util.py"]; !ok {
		t.Fatalf("expected util.py in %v", files)
	}
}

func TestParseCodePackage_HeuristicFallback(t *testing.T) {
	p := NewParser()
	text := "Sure, here's the code:\n```\ndef main():\n    print('entry point')\n\nif __name__ == '__main__':\n    main()\n```"
	files, conf := p.ParseCodePackage(text, []string{"main.py"})
	if conf != ConfidenceLow {
		t.Fatalf("confidence = %v, want Low", conf)
	}
	if len(files) != 1 {
		t.Fatalf("files = %v, want 1 entry", files)
	}
}

func TestParseCodePackage_NoBlocksAtAll(t *testing.T) {
	p := NewParser()
	files, conf := p.ParseCodePackage("I refuse to write code today.", nil)
	if conf != ConfidenceLow {
		t.Fatalf("confidence = %v, want Low", conf)
	}
	if len(files) != 0 {
		t.Fatalf("files = %v, want empty", files)
	}
}

func TestParseDebugResponse_MarkerGrammar(t *testing.T) {
	p := NewParser()
	text := `ANALYSIS_START
The off-by-one error in the loop bound caused the last element to be skipped.
ANALYSIS_END

FILE_START: wordcount.py
def count_words(text):
    return len(text.split())
FILE_END`

	parsed, conf := p.ParseDebugResponse(text)
	if conf != ConfidenceHigh {
		t.Fatalf("confidence = %v, want High", conf)
	}
	if parsed.AnalysisSummary == "" {
		t.Fatalf("expected non-empty analysis summary")
	}
	if _, ok := parsed.FixedFiles["wordcount.py"]; !ok {
		t.Fatalf("expected wordcount.py in fixed files, got %v", parsed.FixedFiles)
	}
}

func TestParseDebugResponse_NoMarkers_LowConfidence(t *testing.T) {
	p := NewParser()
	_, conf := p.ParseDebugResponse("I think the bug is in the loop but I didn't use the markers.")
	if conf != ConfidenceLow {
		t.Fatalf("confidence = %v, want Low", conf)
	}
}

func TestParseFailureAnalysis_IssuesAndSummary(t *testing.T) {
	p := NewParser()
	text := `- Issue 1: off-by-one in loop bound
- Issue 2: missing import of sys
Summary: two small bugs, both easily fixable`

	fa := p.ParseFailureAnalysis(text)
	if len(fa.Issues) != 2 {
		t.Fatalf("issues = %v, want 2", fa.Issues)
	}
	if fa.Summary == "" {
		t.Fatalf("expected non-empty summary")
	}
}
