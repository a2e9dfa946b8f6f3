package sqlinline

const QListResourcesMissingSearchText = `--sql b2e66d44-6c2e-4803-ac7f-fc367fa66ad8
select id, title, author, ai_model, category, description
from resources
where search_text is null or search_text = ''
order by created_at asc
limit $1::int;
`

const QListResourcesMissingAvatar = `--sql cd06eb48-0090-4ce4-8009-684d594d2a22
select id, author
from resources
where avatar_key is null or avatar_key = ''
order by created_at asc
limit $1::int;
`

const QSetResourceAvatarKey = `--sql 2cb4e662-36d3-446d-a392-4ec88eb52e93
update resources
set avatar_key = $2::text,
    updated_at = now()
where id = $1::uuid;
`
