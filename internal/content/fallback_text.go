package content

// Narration used when no generator is available or it misbehaves.
var fallbackText = mustParse("fallback", `
{{- define "battle" -}}
Round {{ .Round }}. The battle rages on!
{{- range .Results }}
{{- if eq (toString .Type) "attack" }}
{{- if .Roll.Miss }} {{ .PlayerName }}'s attack misses!
{{- else if .Roll.Critical }} {{ .PlayerName }} lands a CRITICAL HIT with {{ .SkillName }} for {{ .Damage }} damage!
{{- else }} {{ .PlayerName }} {{ verb .Damage }} the {{ $.Enemy.Name }} with {{ .SkillName }} for {{ .Damage }} damage.
{{- end }}
{{- else if eq (toString .Type) "heal" }}
{{- if .Roll.Miss }} {{ .PlayerName }}'s healing fizzles.
{{- else }} {{ .PlayerName }} channels {{ .SkillName }} and restores {{ .Heal }} HP.
{{- end }}
{{- else if eq (toString .Type) "defend" }} {{ .PlayerName }} takes a defensive stance.
{{- else }} {{ .PlayerName }} catches their breath.
{{- end }}
{{- end }}
{{- if .EnemyDefeated }} The {{ .Enemy.Name }} has been defeated!
{{- else }} The {{ .Enemy.Name }} prepares to strike back!
{{- end }}
{{- end -}}

{{- define "transition" -}}
The party moves from {{ .From.Name }} toward {{ .To.Name }}.
{{- end -}}

{{- define "story" -}}
The party has progressed through {{ .NodeIndex }} of {{ .TotalNodes }} locations in {{ .DungeonName }}, defeating {{ .DefeatedEnemies }} {{ if eq .DefeatedEnemies 1 }}enemy{{ else }}enemies{{ end }} along the way.
{{- end -}}

{{- define "battleSummary" -}}
After {{ .Rounds }} {{ if eq .Rounds 1 }}round{{ else }}rounds{{ end }} of fierce combat, the {{ .Enemy.Name }} falls. The party stands victorious but weary.
{{- end -}}

{{- define "finalSummary" -}}
The adventure in {{ .DungeonName }} has come to an end. Through {{ .Battles }} {{ if eq .Battles 1 }}battle{{ else }}battles{{ end }} and {{ .NPCEvents }} {{ if eq .NPCEvents 1 }}encounter{{ else }}encounters{{ end }}, the party's {{ if eq .Outcome "victory" }}courage led them to victory{{ else }}bravery will be remembered{{ end }}.
{{- end -}}

{{- define "dungeonName" -}}
The {{ .Theme | title }}
{{- end -}}

{{- define "dungeonDescription" -}}
A mysterious {{ .Theme | lower }} filled with danger and adventure.
{{- end -}}
`)
