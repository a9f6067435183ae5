package content

var prompts = mustParse("prompts", `
{{- define "dungeon" -}}
Design a dungeon crawl for a party of adventurers.
Theme: {{ .Theme }}
Difficulty: {{ .Difficulty }}
Write all text in {{ .LanguageName }}.

Rules:
1. Create exactly {{ .NodeCount }} nodes, in order. Each node is type "enemy" or "npc".
2. Node {{ .NodeCount }} must be type "enemy" with a "boss" role enemy.
3. Every enemy node references an enemy by "enemyId". NPC nodes have no enemy.
4. Enemy roles are "minion", "elite" or "boss". HP: minion 30-60, elite 80-120, boss 150-250.
5. Each enemy has 2-4 skills with "type" "damage" or "healing" and an "amount" between 4 and 15.

Answer with JSON only:
{"dungeonName": "...", "description": "...", "difficulty": "{{ .Difficulty }}",
 "nodes": [{"id": "node-1", "name": "...", "type": "enemy", "enemyId": "enemy-1", "description": "..."}],
 "enemies": [{"id": "enemy-1", "name": "...", "role": "minion", "hp": 45, "archetype": "warrior", "skillPower": 1.0,
   "skills": [{"name": "...", "type": "damage", "amount": 8}]}]}
{{- end -}}

{{- define "character" -}}
Create a hero who will fight in a {{ .Theme }} dungeon{{ with .PlayerName }} for the player {{ . }}{{ end }}.
Write all text in {{ .LanguageName }}.

Rules:
1. Role is one of: {{ join ", " .Roles }}.
2. maxHP 80-150, maxStamina 50-100, skillPower 1.5-3.5 (higher for casters).
3. 3-4 skills. Each has "type" "damage" (amount 5-40) or "healing" (amount 5-30) and a "staminaCost" of 0-8.

Answer with JSON only:
{"name": "...", "role": "...", "background": "...", "maxHP": 110, "maxStamina": 70, "skillPower": 2.0,
 "skills": [{"name": "...", "description": "...", "type": "damage", "amount": 20, "staminaCost": 3}]}
{{- end -}}

{{- define "battle" -}}
Narrate round {{ .Round }} of a fight against {{ .Enemy.Name }} ({{ .Enemy.Role }}) in a {{ .Theme }} dungeon.
Write all text in {{ .LanguageName }}. Use the numbers as given; do not invent outcomes.

Enemy HP: {{ .EnemyHP }} -> {{ .EnemyHPAfter }}{{ if .EnemyDefeated }} (defeated){{ end }}
Player actions: {{ .Results | toJson }}
Party: {{ .Party | toJson }}
{{- if not .EnemyDefeated }}
The enemy answers with one of these skills: {{ .SkillNames | join ", " }}. Pick the one that fits the situation.
{{- end }}

Answer with JSON only:
{"narrative": "2-4 sentences", "playerNarratives": [{"playerId": 1, "narrative": "one sentence"}], "enemySkill": "skill name or empty"}
{{- end -}}

{{- define "npc" -}}
The party reaches "{{ .Node.Name }}" in a {{ .Theme }} dungeon and meets a stranger.
Write all text in {{ .LanguageName }}.
Party average HP {{ printf "%.0f" .Party.HP }}/{{ printf "%.0f" .Party.MaxHP }}, stamina {{ printf "%.0f" .Party.Stamina }}/{{ printf "%.0f" .Party.MaxStamina }}.
Offer exactly two choices with ids "positive" and "negative". Effects: hpBonus -20..40, staminaBonus -5..8, skillPowerBonus -0.3..0.5.

Answer with JSON only:
{"npcName": "...", "description": "...", "choices": [
 {"id": "positive", "label": "...", "outcome": {"narrative": "...", "effects": {"hpBonus": 10, "staminaBonus": 2, "skillPowerBonus": 0.2}}},
 {"id": "negative", "label": "...", "outcome": {"narrative": "...", "effects": {"hpBonus": 0, "staminaBonus": 0, "skillPowerBonus": 0}}}]}
{{- end -}}

{{- define "transition" -}}
The party leaves "{{ .From.Name }}" for "{{ .To.Name }}" ({{ .To.Type }}) in a {{ .Theme }} dungeon.
Write all text in {{ .LanguageName }}. Party: {{ .Party | toJson }}
Answer with JSON only: {"narrative": "2 sentences", "mood": "tense | hopeful | ominous | neutral"}
{{- end -}}

{{- define "story" -}}
Summarize the story so far of {{ .DungeonName }}, a {{ .Theme }} dungeon, for a player who just rejoined.
Write all text in {{ .LanguageName }}.
Progress: node {{ .NodeIndex }} of {{ .TotalNodes }}, {{ .DefeatedEnemies }} enemies defeated.
Moments: {{ .Moments | toJson }}
Party: {{ .Party | toJson }}
Answer with JSON only: {"summary": "3-4 sentences", "keyMoments": ["..."], "outlook": "promising | challenging | desperate | victorious"}
{{- end -}}

{{- define "battleSummary" -}}
The party defeated {{ .Enemy.Name }} after {{ .Rounds }} rounds in a {{ .Theme }} dungeon.
Write all text in {{ .LanguageName }}. Party: {{ .Party | toJson }}
Answer with JSON only: {"summary": "2-3 sentences", "tone": "triumphant | bittersweet | hard-won | costly", "quote": "optional"}
{{- end -}}

{{- define "finalSummary" -}}
The adventure in {{ .DungeonName }} ({{ .Theme }}) ended in {{ .Outcome }}.
Write all text in {{ .LanguageName }}.
Battles: {{ .Battles }}, victories: {{ .Victories }}, encounters: {{ .NPCEvents }}.
Moments: {{ .Moments | toJson }}
Party: {{ .Party | toJson }}
Answer with JSON only: {"summary": "...", "highlights": ["...", "...", "..."], "legendStatus": "legendary | heroic | valiant | tragic", "epitaph": "one sentence"}
{{- end -}}
`)
