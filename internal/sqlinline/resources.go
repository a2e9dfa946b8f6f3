package sqlinline

const QInsertResource = `--sql fada92a6-def6-48dd-9377-c8d77afd769b
insert into resources(
  id,
  title,
  author,
  ai_model,
  category,
  description,
  original_source,
  file_key,
  avatar_key,
  thumbnail_key,
  uploader_id,
  created_at,
  updated_at
) values (
  gen_random_uuid(),
  $1::text,
  $2::text,
  $3::text,
  $4::text,
  $5::text,
  nullif($6::text, ''),
  $7::text,
  nullif($8::text, ''),
  nullif($9::text, ''),
  $10::uuid,
  now(),
  now()
) returning id, created_at;
`

const QResourceTitleExists = `--sql 0f487d25-b145-4f11-a820-bc9f504701e5
select exists(
  select 1 from resources where lower(title) = lower($1::text)
);
`

const QSelectResourceByID = `--sql 87293228-8409-4014-b289-8c1367474a11
select
  r.id,
  r.title,
  r.author,
  r.ai_model,
  r.category,
  r.description,
  coalesce(r.original_source, ''),
  r.file_key,
  coalesce(r.avatar_key, ''),
  coalesce(r.thumbnail_key, ''),
  r.downloads,
  r.average_rating,
  r.total_ratings,
  (select count(*) from validations v where v.resource_id = r.id) as validations,
  r.uploader_id,
  r.created_at,
  r.updated_at
from resources r
where r.id = $1::uuid
limit 1;
`

const QListResources = `--sql df142a0a-c7c1-4c92-9f86-fe0c7446f651
select
  r.id,
  r.title,
  r.author,
  r.ai_model,
  r.category,
  r.description,
  coalesce(r.original_source, ''),
  r.file_key,
  coalesce(r.avatar_key, ''),
  coalesce(r.thumbnail_key, ''),
  r.downloads,
  r.average_rating,
  r.total_ratings,
  (select count(*) from validations v where v.resource_id = r.id) as validations,
  r.uploader_id,
  r.created_at,
  r.updated_at
from resources r
where ($1::text = '' or r.category = $1::text)
order by r.created_at desc
limit $2::int offset $3::int;
`

const QSearchResources = `--sql b60bd303-acdf-4453-be46-82876a7a551c
select
  r.id,
  r.title,
  r.author,
  r.ai_model,
  r.category,
  r.description,
  coalesce(r.original_source, ''),
  r.file_key,
  coalesce(r.avatar_key, ''),
  coalesce(r.thumbnail_key, ''),
  r.downloads,
  r.average_rating,
  r.total_ratings,
  (select count(*) from validations v where v.resource_id = r.id) as validations,
  r.uploader_id,
  r.created_at,
  r.updated_at
from resources r
where r.search_text like '%' || $1::text || '%'
order by r.created_at desc
limit $2::int offset $3::int;
`

const QUpdateResourceSearchText = `--sql a376e7d8-8b55-4ca3-83f8-484fe288f24c
update resources
set search_text = $2::text,
    updated_at = now()
where id = $1::uuid;
`

const QSelectResourceFileKey = `--sql e1f88611-6d58-464c-98a6-7d8429623956
select file_key
from resources
where id = $1::uuid
limit 1;
`

const QDeleteResourceByUploader = `--sql 49991aec-1bfa-4fca-81ac-e8b7a957d795
delete from resources
where id = $1::uuid
  and uploader_id = $2::uuid
returning file_key, coalesce(avatar_key, ''), coalesce(thumbnail_key, '');
`
